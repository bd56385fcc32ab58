// Package main is the CLI entry point for ngsn.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nightumbrella/ngsn/internal/infra"
	"github.com/nightumbrella/ngsn/internal/metrics"
	"github.com/nightumbrella/ngsn/internal/policy"
	"github.com/nightumbrella/ngsn/internal/tui"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ngsn",
	Short: "Network traffic monitor - who is this machine talking to",
	Long: `ngsn samples the OS connection table, resolves remote addresses to
domains and shows a live table of active outbound connections ranked by
how many sockets each domain holds.

Run with sudo to see sockets owned by other users.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runWatch,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live traffic table (default)",
	Long: `Opens the interactive traffic table.
Keys: s start/stop, c clear, r refresh now, h history, q quit.
Logs go to the configured log file so the terminal stays clean.`,
	RunE: runWatch,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Sample once and print the ranked table",
	Long:  `Takes one sample of the connection table, prints the ranked summary and exits. Use --json for machine-readable output.`,
	RunE:  runSnapshot,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <ip>...",
	Short: "Show how addresses are classified and resolved",
	Long:  `For each IP, shows whether it is local (and therefore hidden) and which domain it resolves to.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var servicesCmd = &cobra.Command{
	Use:   "services [id]...",
	Short: "List the offline known-service table",
	Long:  `Lists the address prefixes used to name an IP when reverse DNS has no answer. Matching is first-prefix-wins in the order shown.`,
	RunE:  runServices,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to ngsn.yaml (default: ./ngsn.yaml or ~/.config/ngsn/ngsn.yaml)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Log file (watch mode default: /var/tmp/ngsn.log)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	pf.Duration("interval", 0, "Accumulation sampling interval")
	pf.Duration("dns-timeout", 0, "Reverse DNS timeout per lookup")

	snapshotCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	mon := a.monitor(ctx)
	hint := infra.DetectPrivilege().Hint()

	g, gctx := errgroup.WithContext(ctx)
	uiCtx, cancelUI := context.WithCancel(gctx)
	defer cancelUI()

	g.Go(func() error {
		// Quitting the UI ends every other goroutine in the group.
		defer cancelUI()
		return tui.Run(uiCtx, mon, hint)
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			if err := metrics.Serve(uiCtx, addr, a.registry, a.logger); err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	mon.Stop()
	mon.Wait()
	a.logger.Info("ngsn exiting")
	return err
}

// snapshotRow is the JSON form of one ranked row.
type snapshotRow struct {
	Domain      string `json:"domain"`
	Connections int    `json:"connections"`
	Ports       string `json:"ports"`
	Status      string `json:"status"`
	LastSeen    string `json:"last_seen"`
	Processes   string `json:"processes,omitempty"`
}

type snapshotOutput struct {
	GeneratedAt      string        `json:"generated_at"`
	TotalConnections int           `json:"total_connections"`
	UniqueDomains    int           `json:"unique_domains"`
	Rows             []snapshotRow `json:"rows"`
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	summary, err := a.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	if jsonOutput {
		out := snapshotOutput{
			GeneratedAt:      summary.GeneratedAt.Format(time.RFC3339),
			TotalConnections: summary.TotalConnections,
			UniqueDomains:    summary.UniqueDomains,
			Rows:             make([]snapshotRow, 0, len(summary.Rows)),
		}
		for _, r := range summary.Rows {
			out.Rows = append(out.Rows, snapshotRow{
				Domain:      r.DisplayName,
				Connections: r.Count,
				Ports:       r.PortsDisplay,
				Status:      string(r.Status),
				LastSeen:    r.LastSeen.Format(time.RFC3339),
				Processes:   r.Processes,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if hint := infra.DetectPrivilege().Hint(); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("Website/IP", "Connections", "Ports", "Status", "Last Seen", "Processes")
	for _, r := range summary.Rows {
		t.Row(
			r.DisplayName,
			strconv.Itoa(r.Count),
			r.PortsDisplay,
			string(r.Status),
			r.LastSeen.Local().Format("15:04:05"),
			r.Processes,
		)
	}
	fmt.Println(t.Render())
	fmt.Println(tui.Footer(summary))
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	for _, ip := range args {
		if policy.IsExcluded(ip) {
			fmt.Printf("%-40s local (not shown)\n", ip)
			continue
		}
		d := a.resolver.Resolve(ctx, ip)
		source := "reverse dns"
		if d == ip {
			source = "unresolved"
		} else if svc, ok := a.services.Lookup(ip); ok && d == svc.Domain() {
			source = "known service: " + svc.ID()
		}
		fmt.Printf("%-40s %-30s (%s)\n", ip, d, source)
	}

	a.logger.Debug("resolve finished", zap.Int("addresses", len(args)))
	return nil
}

func runServices(cmd *cobra.Command, args []string) error {
	list, err := selectServices(policy.NewRegistry(), args)
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "Domain", "Prefixes")
	for _, svc := range list {
		t.Row(svc.ID(), svc.Domain(), strings.Join(svc.Prefixes(), " "))
	}
	fmt.Println(t.Render())
	return nil
}

// selectServices returns the named policies, or all of them in match order.
func selectServices(services *policy.Registry, ids []string) ([]policy.ServicePolicy, error) {
	if len(ids) == 0 {
		return services.GetAll(), nil
	}
	list := make([]policy.ServicePolicy, 0, len(ids))
	for _, id := range ids {
		svc, ok := services.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown service %q", id)
		}
		list = append(list, svc)
	}
	return list, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("ngsn %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
