package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// fakeController implements Controller for testing
type fakeController struct {
	running    bool
	summary    domain.RankedSummary
	history    []domain.TrafficRecord
	refreshErr error
	cleared    int
	refreshes  int
	starts     int
}

func (f *fakeController) Latest() domain.RankedSummary    { return f.summary }
func (f *fakeController) History() []domain.TrafficRecord { return f.history }
func (f *fakeController) Start()                          { f.starts++; f.running = true }
func (f *fakeController) Stop()                           { f.running = false }
func (f *fakeController) IsRunning() bool                 { return f.running }

func (f *fakeController) Clear() {
	f.cleared++
	f.summary = domain.RankedSummary{}
}

func (f *fakeController) RefreshNow(ctx context.Context) (domain.RankedSummary, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return domain.RankedSummary{}, f.refreshErr
	}
	return f.summary, nil
}

func googleSummary() domain.RankedSummary {
	return domain.RankedSummary{
		Rows: []domain.SummaryRow{{
			DisplayName:  "google.com (142.250.1.1)",
			Count:        2,
			PortsDisplay: "443, 80",
			Status:       domain.StatusEstablished,
			LastSeen:     time.Now(),
			Processes:    "firefox",
		}},
		TotalConnections: 2,
		UniqueDomains:    1,
		GeneratedAt:      time.Now(),
	}
}

func key(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestView_ShowsSummary(t *testing.T) {
	ctrl := &fakeController{running: true, summary: googleSummary()}
	m := New(context.Background(), ctrl, "")

	view := m.View()

	assert.Contains(t, view, "Status: monitoring active")
	assert.Contains(t, view, "Website/IP")
	assert.Contains(t, view, "google.com (142.250.1.1)")
	assert.Contains(t, view, "443, 80")
	assert.Contains(t, view, "Total active connections: 2 | Unique domains: 1")
}

func TestView_ShowsHint(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "Re-run with sudo")

	assert.Contains(t, m.View(), "Re-run with sudo")
	assert.Contains(t, m.View(), "Status: monitoring stopped")
}

func TestUpdate_ToggleStartStop(t *testing.T) {
	ctrl := &fakeController{running: true}
	m := New(context.Background(), ctrl, "")

	m, cmd := press(t, m, "s")
	assert.Nil(t, cmd)
	assert.False(t, ctrl.running)
	assert.Contains(t, m.View(), "Status: monitoring stopped")

	m, cmd = press(t, m, "s")
	require.NotNil(t, cmd)
	assert.Equal(t, 0, ctrl.starts, "start runs off the update loop")
	assert.Contains(t, m.View(), "Starting...")

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, 1, ctrl.starts)
	assert.True(t, ctrl.running)
	assert.Contains(t, m.View(), "Status: monitoring active")
	assert.Contains(t, m.View(), "Monitoring started")
}

func TestUpdate_Clear(t *testing.T) {
	ctrl := &fakeController{running: true, summary: googleSummary()}
	m := New(context.Background(), ctrl, "")

	m, _ = press(t, m, "c")

	assert.Equal(t, 1, ctrl.cleared)
	assert.NotContains(t, m.View(), "google.com")
	assert.Contains(t, m.View(), "Total active connections: 0 | Unique domains: 0")
}

func TestUpdate_RefreshNow(t *testing.T) {
	ctrl := &fakeController{running: true}
	m := New(context.Background(), ctrl, "")
	ctrl.summary = googleSummary()

	m, cmd := press(t, m, "r")
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.Equal(t, 1, ctrl.refreshes)
	assert.Contains(t, m.View(), "google.com (142.250.1.1)")
}

func TestUpdate_RefreshFailureIsShown(t *testing.T) {
	ctrl := &fakeController{running: true, refreshErr: errors.New("netlink exploded")}
	m := New(context.Background(), ctrl, "")

	m, cmd := press(t, m, "r")
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.Contains(t, m.View(), "netlink exploded")
}

func TestUpdate_TickPollsLatest(t *testing.T) {
	ctrl := &fakeController{running: true}
	m := New(context.Background(), ctrl, "")
	ctrl.summary = googleSummary()

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)

	assert.NotNil(t, cmd, "tick re-arms itself")
	assert.Contains(t, m.View(), "google.com (142.250.1.1)")
}

func TestUpdate_HistoryToggle(t *testing.T) {
	ctrl := &fakeController{
		running: true,
		summary: googleSummary(),
		history: []domain.TrafficRecord{{
			Domain:      "github.com",
			IP:          "185.199.108.153",
			Connections: 7,
			Ports:       []uint16{22, 443},
			Status:      domain.StatusEstablished,
			LastSeen:    time.Now(),
		}},
	}
	m := New(context.Background(), ctrl, "")

	m, _ = press(t, m, "h")
	view := m.View()
	assert.Contains(t, view, "(history)")
	assert.Contains(t, view, "github.com (185.199.108.153)")
	assert.Contains(t, view, "22, 443")

	m, _ = press(t, m, "h")
	assert.NotContains(t, m.View(), "github.com")
}

func TestUpdate_Quit(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "")

	_, cmd := press(t, m, "q")

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestStatusLineAndFooter(t *testing.T) {
	assert.Equal(t, "Status: monitoring active", StatusLine(true))
	assert.Equal(t, "Status: monitoring stopped", StatusLine(false))
	assert.Equal(t, "Total active connections: 3 | Unique domains: 2",
		Footer(domain.RankedSummary{TotalConnections: 3, UniqueDomains: 2}))
}
