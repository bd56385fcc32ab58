package usecase

import (
	"time"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// Aggregator owns the history counters and the traffic table, and ranks snapshots.
type Aggregator struct {
	counters *CounterStore
	table    *TrafficTable
	now      func() time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counters: NewCounterStore(),
		table:    NewTrafficTable(),
		now:      time.Now,
	}
}

// Counters returns the store the sampler bumps.
func (a *Aggregator) Counters() domain.Counter {
	return a.counters
}

// Accumulate merges a snapshot into the traffic table.
func (a *Aggregator) Accumulate(snapshot []domain.SnapshotEntry) {
	a.table.Merge(snapshot)
}

// Summarize ranks a snapshot for display.
func (a *Aggregator) Summarize(snapshot []domain.SnapshotEntry) domain.RankedSummary {
	return Summarize(snapshot, a.now().Truncate(time.Second))
}

// History returns a copy of the traffic table.
func (a *Aggregator) History() []domain.TrafficRecord {
	return a.table.Snapshot()
}

// Size reports the traffic table's domain count and the number of visit keys.
func (a *Aggregator) Size() (domains, keys int) {
	return a.table.Len(), a.counters.Len()
}

// Clear resets counters and the traffic table.
func (a *Aggregator) Clear() {
	a.counters.Clear()
	a.table.Clear()
}
