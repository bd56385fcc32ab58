// Package daemon runs the background sampling and display loops.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nightumbrella/ngsn/internal/domain"
	"github.com/nightumbrella/ngsn/internal/metrics"
	"github.com/nightumbrella/ngsn/internal/usecase"
)

// MonitorConfig holds monitor loop configuration.
type MonitorConfig struct {
	SampleInterval  time.Duration // How often to sample into the traffic table (default 2s)
	RetryBackoff    time.Duration // Wait after a failed accumulation pass (default 5s)
	DisplayInterval time.Duration // How often to publish a fresh ranked summary (default 3s)
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SampleInterval:  2 * time.Second,
		RetryBackoff:    5 * time.Second,
		DisplayInterval: 3 * time.Second,
	}
}

// Monitor owns the sampling lifecycle and all mutable aggregation state.
// It runs two independent loops while RUNNING:
//   - accumulation: sample, merge into the traffic table
//   - display: sample, summarize, publish for the shell
//
// Published summaries are swapped atomically; readers never see a partial table.
type Monitor struct {
	config     MonitorConfig
	sampler    domain.Sampler
	resolver   domain.DomainResolver
	aggregator *usecase.Aggregator
	logger     *zap.Logger
	metrics    *metrics.Metrics

	baseCtx context.Context
	running atomic.Bool
	latest  atomic.Pointer[domain.RankedSummary]

	// mu serializes Start/Stop. The loops never take it.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // Closed when the current generation's loops exit
}

// NewMonitor creates a monitor and starts it.
// ctx bounds every loop generation; cancelling it stops the monitor for good.
func NewMonitor(
	ctx context.Context,
	config MonitorConfig,
	sampler domain.Sampler,
	resolver domain.DomainResolver,
	aggregator *usecase.Aggregator,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Monitor {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	mon := &Monitor{
		config:     config,
		sampler:    sampler,
		resolver:   resolver,
		aggregator: aggregator,
		logger:     logger.Named("monitor"),
		metrics:    m,
		baseCtx:    ctx,
	}
	mon.latest.Store(&domain.RankedSummary{})
	mon.Start()
	return mon
}

// Start spawns the sampling loops. No-op if already running.
// If a previous generation is still winding down, Start waits for it first
// so two accumulation loops never overlap.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return
	}
	if m.done != nil {
		<-m.done
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running.Store(true)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.runAccumulation(ctx)
	}()
	go func() {
		defer wg.Done()
		m.runDisplay(ctx)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	m.logger.Info("monitoring started",
		zap.Duration("sample_interval", m.config.SampleInterval),
		zap.Duration("display_interval", m.config.DisplayInterval))
}

// Stop asks the loops to exit. It does not wait; see Wait.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.Load() {
		return
	}
	m.running.Store(false)
	m.cancel()
	m.logger.Info("monitoring stopped")
}

// Wait blocks until the current generation's loops have exited.
func (m *Monitor) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

// IsRunning reports whether the sampling loops are active.
func (m *Monitor) IsRunning() bool {
	return m.running.Load() && m.baseCtx.Err() == nil
}

// Clear resets the domain cache, history counters, traffic table and the
// published summary. Works in either state.
func (m *Monitor) Clear() {
	m.resolver.Clear()
	m.aggregator.Clear()
	m.observeHistory()
	m.publish(domain.RankedSummary{GeneratedAt: time.Now().Truncate(time.Second)})
	m.logger.Info("monitoring data cleared")
}

// RefreshNow samples and summarizes immediately, publishes the result and returns it.
// Independent of the display loop's phase and of the running state.
func (m *Monitor) RefreshNow(ctx context.Context) (domain.RankedSummary, error) {
	var summary domain.RankedSummary
	err := m.safely(func() error {
		snapshot, err := m.sampler.Sample(ctx)
		if err != nil {
			m.metrics.SampleErrors.WithLabelValues(metrics.KindUnexpected).Inc()
			return err
		}
		summary = m.aggregator.Summarize(snapshot)
		return nil
	})
	if err != nil {
		return domain.RankedSummary{}, err
	}

	m.publish(summary)
	return summary, nil
}

// Latest returns a copy of the most recently published summary.
func (m *Monitor) Latest() domain.RankedSummary {
	s := *m.latest.Load()
	s.Rows = append([]domain.SummaryRow(nil), s.Rows...)
	return s
}

// History returns a copy of the accumulated traffic table.
func (m *Monitor) History() []domain.TrafficRecord {
	return m.aggregator.History()
}

// runAccumulation samples into the traffic table until ctx is cancelled.
// A failed pass is logged and the next attempt is delayed by RetryBackoff.
func (m *Monitor) runAccumulation(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("accumulation loop exiting")
			return

		case <-timer.C:
			wait := m.config.SampleInterval
			if err := m.accumulate(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				wait = m.config.RetryBackoff
				m.logger.Error("monitoring pass failed",
					zap.Error(err),
					zap.Duration("retry_in", wait))
			}
			timer.Reset(wait)
		}
	}
}

func (m *Monitor) accumulate(ctx context.Context) error {
	return m.safely(func() error {
		snapshot, err := m.sampler.Sample(ctx)
		if err != nil {
			m.metrics.SampleErrors.WithLabelValues(metrics.KindUnexpected).Inc()
			return err
		}
		m.aggregator.Accumulate(snapshot)
		m.observeHistory()
		return nil
	})
}

// runDisplay republishes a fresh ranked summary every DisplayInterval.
func (m *Monitor) runDisplay(ctx context.Context) {
	ticker := time.NewTicker(m.config.DisplayInterval)
	defer ticker.Stop()

	m.refreshFromLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("display loop exiting")
			return
		case <-ticker.C:
			m.refreshFromLoop(ctx)
		}
	}
}

func (m *Monitor) refreshFromLoop(ctx context.Context) {
	if _, err := m.RefreshNow(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("display refresh failed", zap.Error(err))
	}
}

// safely converts a panic inside fn into an error.
func (m *Monitor) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.SampleErrors.WithLabelValues(metrics.KindPanic).Inc()
			err = fmt.Errorf("panic in sampling pass: %v", r)
		}
	}()
	return fn()
}

func (m *Monitor) publish(s domain.RankedSummary) {
	m.latest.Store(&s)
	m.metrics.ActiveConnections.Set(float64(s.TotalConnections))
	m.metrics.UniqueDomains.Set(float64(s.UniqueDomains))
	m.metrics.CacheSize.Set(float64(m.resolver.Len()))
}

func (m *Monitor) observeHistory() {
	domains, keys := m.aggregator.Size()
	m.metrics.HistoryDomains.Set(float64(domains))
	m.metrics.VisitKeys.Set(float64(keys))
}
