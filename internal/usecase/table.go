package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/nightumbrella/ngsn/internal/domain"
)

type trafficEntry struct {
	connections uint64
	ports       map[uint16]struct{}
	lastSeen    time.Time
	ip          string
	status      domain.ConnStatus
}

// TrafficTable keeps the last-known aggregate per domain, fed by the
// accumulation cadence.
type TrafficTable struct {
	mu      sync.Mutex
	entries map[string]*trafficEntry
}

// NewTrafficTable creates an empty table.
func NewTrafficTable() *TrafficTable {
	return &TrafficTable{entries: make(map[string]*trafficEntry)}
}

// Merge folds a snapshot into the table.
// The first touch of a domain creates its record and pins its IP; later
// entries overwrite connections, last seen and status, and add ports.
func (t *TrafficTable) Merge(snapshot []domain.SnapshotEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range snapshot {
		rec, ok := t.entries[e.Domain]
		if !ok {
			rec = &trafficEntry{
				ports:    make(map[uint16]struct{}),
				lastSeen: e.ObservedAt,
				ip:       e.IP,
			}
			t.entries[e.Domain] = rec
		}

		rec.connections = e.VisitCount
		rec.ports[e.Port] = struct{}{}
		rec.lastSeen = e.ObservedAt
		rec.status = e.Status
	}
}

// Snapshot returns a copy ordered by connections (desc), then domain.
func (t *TrafficTable) Snapshot() []domain.TrafficRecord {
	t.mu.Lock()
	out := make([]domain.TrafficRecord, 0, len(t.entries))
	for d, rec := range t.entries {
		ports := make([]uint16, 0, len(rec.ports))
		for p := range rec.ports {
			ports = append(ports, p)
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })

		out = append(out, domain.TrafficRecord{
			Domain:      d,
			Connections: rec.connections,
			Ports:       ports,
			LastSeen:    rec.lastSeen,
			IP:          rec.ip,
			Status:      rec.status,
		})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Connections != out[j].Connections {
			return out[i].Connections > out[j].Connections
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Clear drops every record.
func (t *TrafficTable) Clear() {
	t.mu.Lock()
	t.entries = make(map[string]*trafficEntry)
	t.mu.Unlock()
}

// Len returns the number of domains in the table.
func (t *TrafficTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
