package usecase

import (
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// CounterStore implements domain.Counter on a sharded concurrent map.
type CounterStore struct {
	counts cmap.ConcurrentMap[string, uint64]
}

// NewCounterStore creates an empty counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{counts: cmap.New[uint64]()}
}

// Bump increments key under its shard lock and returns the new count.
func (c *CounterStore) Bump(key string) uint64 {
	return c.counts.Upsert(key, 1, func(exist bool, valueInMap uint64, newValue uint64) uint64 {
		if !exist {
			return newValue
		}
		return valueInMap + newValue
	})
}

// Clear resets every counter.
func (c *CounterStore) Clear() {
	c.counts.Clear()
}

// Len returns the number of tracked keys.
func (c *CounterStore) Len() int {
	return c.counts.Count()
}

// Ensure CounterStore implements domain.Counter.
var _ domain.Counter = (*CounterStore)(nil)
