package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nightumbrella/ngsn/internal/daemon"
	"github.com/nightumbrella/ngsn/internal/domain"
	"github.com/nightumbrella/ngsn/internal/infra"
	"github.com/nightumbrella/ngsn/internal/metrics"
	"github.com/nightumbrella/ngsn/internal/policy"
	"github.com/nightumbrella/ngsn/internal/tui"
	"github.com/nightumbrella/ngsn/internal/usecase"
)

var _ tui.Controller = (*daemon.Monitor)(nil)

// app holds the wired components shared by every command.
type app struct {
	cfg        *infra.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	services   *policy.Registry
	resolver   *usecase.Resolver
	aggregator *usecase.Aggregator
	sampler    domain.Sampler
}

// newApp loads configuration and builds the component graph.
// Interactive commands log to the configured file; one-shot commands log to
// stderr unless --log-file was given.
func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	cfg, err := infra.LoadConfig(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Logger
	if !interactive && !cmd.Flags().Changed("log-file") {
		logCfg.File = ""
	}
	logger, err := infra.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	services := policy.NewRegistry()
	dns := infra.NewDNSResolver(cfg.Resolver.LookupsPerSecond, cfg.Resolver.LookupBurst)
	resolver := usecase.NewResolver(dns, services, cfg.Resolver.DNSTimeout, logger, m)
	aggregator := usecase.NewAggregator()

	lister := infra.NewConnectionLister(cfg.Sampler.Kind)
	var sampler domain.Sampler
	if cfg.Sampler.ResolveProcesses {
		sampler = usecase.NewSamplerWithProcesses(lister, resolver, aggregator.Counters(), infra.NewProcessNamer(), logger, m)
	} else {
		sampler = usecase.NewSampler(lister, resolver, aggregator.Counters(), logger, m)
	}

	logger.Debug("configuration loaded",
		zap.Duration("sample_interval", cfg.Monitor.SampleInterval),
		zap.Duration("display_interval", cfg.Monitor.DisplayInterval),
		zap.Duration("dns_timeout", cfg.Resolver.DNSTimeout),
		zap.String("kind", cfg.Sampler.Kind),
		zap.String("privilege", infra.DetectPrivilege().String()))

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		metrics:    m,
		services:   services,
		resolver:   resolver,
		aggregator: aggregator,
		sampler:    sampler,
	}, nil
}

// monitor creates the monitor, which starts sampling immediately.
func (a *app) monitor(ctx context.Context) *daemon.Monitor {
	config := daemon.MonitorConfig{
		SampleInterval:  a.cfg.Monitor.SampleInterval,
		RetryBackoff:    a.cfg.Monitor.RetryBackoff,
		DisplayInterval: a.cfg.Monitor.DisplayInterval,
	}
	return daemon.NewMonitor(ctx, config, a.sampler, a.resolver, a.aggregator, a.logger, a.metrics)
}

// snapshot samples once and ranks the result without starting the loops,
// so nothing is added to the history.
func (a *app) snapshot(ctx context.Context) (domain.RankedSummary, error) {
	entries, err := a.sampler.Sample(ctx)
	if err != nil {
		return domain.RankedSummary{}, err
	}
	return a.aggregator.Summarize(entries), nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
