// Package tui renders the live traffic table in the terminal.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// Controller is the part of the monitor the shell drives.
type Controller interface {
	Latest() domain.RankedSummary
	History() []domain.TrafficRecord
	Start()
	Stop()
	Clear()
	RefreshNow(ctx context.Context) (domain.RankedSummary, error)
	IsRunning() bool
}

const (
	pollInterval   = time.Second
	refreshTimeout = 10 * time.Second
	lastSeenLayout = "15:04:05"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)
)

type tickMsg time.Time

// refreshedMsg carries the result of a manual refresh.
type refreshedMsg struct {
	summary domain.RankedSummary
	err     error
}

// startedMsg reports that Start returned.
type startedMsg struct{}

type viewMode int

const (
	viewLive viewMode = iota
	viewHistory
)

// Model is the bubbletea model for the monitor screen.
type Model struct {
	ctrl    Controller
	ctx     context.Context
	mode    viewMode
	table   table.Model
	summary domain.RankedSummary
	history []domain.TrafficRecord
	running bool
	hint    string

	message     string
	messageTime time.Time
	err         error

	width  int
	height int
}

// New creates the screen model. hint, if set, is shown under the title.
func New(ctx context.Context, ctrl Controller, hint string) Model {
	m := Model{
		ctrl:    ctrl,
		ctx:     ctx,
		mode:    viewLive,
		hint:    hint,
		height:  30,
		running: ctrl.IsRunning(),
		summary: ctrl.Latest(),
	}
	m.initTable()
	m.updateRows()
	return m
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, hint string) error {
	p := tea.NewProgram(New(ctx, ctrl, hint), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) initTable() {
	columns := []table.Column{
		{Title: "Website/IP", Width: 40},
		{Title: "Connections", Width: 12},
		{Title: "Ports", Width: 22},
		{Title: "Status", Width: 12},
		{Title: "Last Seen", Width: 10},
		{Title: "Processes", Width: 24},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(tableHeight(m.height)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(s)

	m.table = t
}

func tableHeight(screen int) int {
	if h := screen - 12; h > 3 {
		return h
	}
	return 3
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, refreshTimeout)
		defer cancel()
		s, err := m.ctrl.RefreshNow(ctx)
		return refreshedMsg{summary: s, err: err}
	}
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Start()
		return startedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if m.ctrl.IsRunning() {
				m.ctrl.Stop()
				m.flash("Monitoring stopped")
				m.poll()
				return m, nil
			}
			// Start may wait for the previous loops to finish an OS query.
			m.flash("Starting...")
			return m, m.start()
		case "c":
			m.ctrl.Clear()
			m.flash("Data cleared")
			m.poll()
			return m, nil
		case "r":
			m.flash("Refreshing...")
			return m, m.refresh()
		case "h":
			if m.mode == viewLive {
				m.mode = viewHistory
				m.history = m.ctrl.History()
			} else {
				m.mode = viewLive
			}
			m.updateRows()
			return m, nil
		}
	case tickMsg:
		m.poll()
		return m, tick()
	case startedMsg:
		m.flash("Monitoring started")
		m.poll()
		return m, nil
	case refreshedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.flash("Refresh failed")
		} else {
			m.err = nil
			m.summary = msg.summary
			m.flash("Refreshed")
			m.updateRows()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(tableHeight(m.height))
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// poll pulls the latest published state from the controller.
func (m *Model) poll() {
	m.running = m.ctrl.IsRunning()
	m.summary = m.ctrl.Latest()
	if m.mode == viewHistory {
		m.history = m.ctrl.History()
	}
	m.updateRows()
}

func (m *Model) flash(text string) {
	m.message = text
	m.messageTime = time.Now()
}

func (m *Model) updateRows() {
	var rows []table.Row

	switch m.mode {
	case viewLive:
		for _, r := range m.summary.Rows {
			rows = append(rows, table.Row{
				r.DisplayName,
				strconv.Itoa(r.Count),
				r.PortsDisplay,
				string(r.Status),
				formatTime(r.LastSeen),
				r.Processes,
			})
		}
	case viewHistory:
		for _, h := range m.history {
			name := h.Domain
			if h.IP != "" && h.IP != h.Domain {
				name = fmt.Sprintf("%s (%s)", h.Domain, h.IP)
			}
			rows = append(rows, table.Row{
				name,
				strconv.FormatUint(h.Connections, 10),
				joinPorts(h.Ports),
				string(h.Status),
				formatTime(h.LastSeen),
				"",
			})
		}
	}

	m.table.SetRows(rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(lastSeenLayout)
}

func joinPorts(ports []uint16) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.FormatUint(uint64(p), 10)
	}
	return strings.Join(parts, ", ")
}

// StatusLine renders the monitoring state text.
func StatusLine(running bool) string {
	if running {
		return "Status: monitoring active"
	}
	return "Status: monitoring stopped"
}

// Footer renders the totals line under the table.
func Footer(s domain.RankedSummary) string {
	return fmt.Sprintf("Total active connections: %d | Unique domains: %d", s.TotalConnections, s.UniqueDomains)
}

func (m Model) View() string {
	var b strings.Builder

	title := "Network Traffic Monitor"
	if m.mode == viewHistory {
		title += " (history)"
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	if m.hint != "" {
		b.WriteString(mutedStyle.Render(m.hint) + "\n")
	}
	b.WriteString("\n")

	if m.running {
		b.WriteString(activeStyle.Render(StatusLine(true)))
	} else {
		b.WriteString(stoppedStyle.Render(StatusLine(false)))
	}
	if !m.summary.GeneratedAt.IsZero() {
		b.WriteString(mutedStyle.Render("  Updated: " + formatTime(m.summary.GeneratedAt)))
	}
	b.WriteString("\n\n")

	b.WriteString(baseStyle.Render(m.table.View()) + "\n")
	b.WriteString(Footer(m.summary) + "\n")

	if m.err != nil {
		b.WriteString(stoppedStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}
	if m.message != "" && time.Since(m.messageTime) < 3*time.Second {
		b.WriteString("\n" + messageStyle.Render(" "+m.message+" ") + "\n")
	}

	help := "\n  q: quit • s: start/stop • c: clear • r: refresh • h: history"
	b.WriteString(mutedStyle.Render(help) + "\n")

	return b.String()
}
