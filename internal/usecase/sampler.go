package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nightumbrella/ngsn/internal/domain"
	"github.com/nightumbrella/ngsn/internal/metrics"
	"github.com/nightumbrella/ngsn/internal/policy"
)

// SamplerImpl implements domain.Sampler.
type SamplerImpl struct {
	lister   domain.ConnectionLister
	resolver domain.DomainResolver
	counters domain.Counter
	namer    domain.ProcessNamer // Optional
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSampler creates a connection sampler.
func NewSampler(
	lister domain.ConnectionLister,
	resolver domain.DomainResolver,
	counters domain.Counter,
	logger *zap.Logger,
	m *metrics.Metrics,
) *SamplerImpl {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	return &SamplerImpl{
		lister:   lister,
		resolver: resolver,
		counters: counters,
		logger:   logger.Named("sampler"),
		metrics:  m,
		now:      time.Now,
	}
}

// NewSamplerWithProcesses creates a sampler that also names owning processes.
func NewSamplerWithProcesses(
	lister domain.ConnectionLister,
	resolver domain.DomainResolver,
	counters domain.Counter,
	namer domain.ProcessNamer,
	logger *zap.Logger,
	m *metrics.Metrics,
) *SamplerImpl {
	s := NewSampler(lister, resolver, counters, logger, m)
	s.namer = namer
	return s
}

// Sample reads the OS table and returns established, non-local, resolved connections.
// Permission and vanished-process failures yield an empty sample, not an error.
func (s *SamplerImpl) Sample(ctx context.Context) ([]domain.SnapshotEntry, error) {
	start := time.Now()
	defer func() {
		s.metrics.SampleDuration.Observe(time.Since(start).Seconds())
	}()

	conns, err := s.lister.List(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccessDenied):
			s.metrics.SampleErrors.WithLabelValues(metrics.KindAccessDenied).Inc()
			s.logger.Debug("connection table not readable, skipping pass", zap.Error(err))
			return []domain.SnapshotEntry{}, nil
		case errors.Is(err, domain.ErrNotFound):
			s.metrics.SampleErrors.WithLabelValues(metrics.KindNotFound).Inc()
			s.logger.Debug("process vanished during listing, skipping pass", zap.Error(err))
			return []domain.SnapshotEntry{}, nil
		default:
			return nil, err
		}
	}

	observedAt := s.now().Truncate(time.Second)
	names := make(map[int32]string)
	entries := make([]domain.SnapshotEntry, 0, len(conns))

	for _, c := range conns {
		if c.RemoteIP == "" || c.Status != domain.StatusEstablished {
			continue
		}
		if policy.IsExcluded(c.RemoteIP) {
			continue
		}

		d := s.resolver.Resolve(ctx, c.RemoteIP)
		count := s.counters.Bump(domain.ConnectionKey(d, c.RemotePort))

		entries = append(entries, domain.SnapshotEntry{
			Domain:     d,
			IP:         c.RemoteIP,
			Port:       c.RemotePort,
			Status:     c.Status,
			VisitCount: count,
			ObservedAt: observedAt,
			PID:        c.PID,
			Process:    s.processName(c.PID, names),
		})
	}

	s.metrics.SamplesTotal.Inc()
	return entries, nil
}

// processName looks pid up once per pass; failures leave the name empty.
func (s *SamplerImpl) processName(pid int32, names map[int32]string) string {
	if s.namer == nil || pid <= 0 {
		return ""
	}
	if n, ok := names[pid]; ok {
		return n
	}
	n, err := s.namer.Name(pid)
	if err != nil {
		n = ""
	}
	names[pid] = n
	return n
}

// Ensure SamplerImpl implements domain.Sampler.
var _ domain.Sampler = (*SamplerImpl)(nil)
