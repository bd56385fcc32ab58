package domain

import (
	"context"
	"errors"
)

var (
	// ErrAccessDenied is returned when the OS refuses to expose the connection table.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when a process vanished while the table was being read.
	ErrNotFound = errors.New("process not found")
)

// ConnectionLister reads the OS inet connection table.
// Implementation: gopsutil net.Connections("inet").
type ConnectionLister interface {
	// List returns every TCP/UDP socket currently known to the OS.
	// Permission and vanished-process failures wrap ErrAccessDenied / ErrNotFound.
	List(ctx context.Context) ([]RawConnection, error)
}

// ReverseResolver performs reverse DNS (PTR) lookups.
type ReverseResolver interface {
	// LookupAddr returns host names for ip. Callers bound ctx with a timeout.
	LookupAddr(ctx context.Context, ip string) ([]string, error)
}

// ProcessNamer maps a PID to its executable name.
type ProcessNamer interface {
	Name(pid int32) (string, error)
}

// DomainResolver maps a remote IP to a display domain.
// Never fails: lookup errors are absorbed by the heuristic fallback.
type DomainResolver interface {
	Resolve(ctx context.Context, ip string) string

	// Clear empties the cache so the next Resolve retries DNS.
	Clear()

	// Len returns the number of cached IPs.
	Len() int
}

// Counter keeps monotonically increasing visit counts per connection key.
type Counter interface {
	// Bump increments the count for key and returns the new value.
	Bump(key string) uint64

	Clear()
}

// Sampler produces one filtered, resolved connection snapshot.
type Sampler interface {
	Sample(ctx context.Context) ([]SnapshotEntry, error)
}
