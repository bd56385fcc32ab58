package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// mockDNS implements domain.ReverseResolver for testing
type mockDNS struct {
	names map[string][]string
	err   error
	calls atomic.Int32
}

func (m *mockDNS) LookupAddr(ctx context.Context, ip string) ([]string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if names, ok := m.names[ip]; ok {
		return names, nil
	}
	return nil, errNoPTR
}

type lookupError string

func (e lookupError) Error() string { return string(e) }

const errNoPTR = lookupError("no PTR record")

// mockLister implements domain.ConnectionLister for testing
type mockLister struct {
	conns []domain.RawConnection
	err   error
}

func (m *mockLister) List(ctx context.Context) ([]domain.RawConnection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.conns, nil
}

// mockNamer implements domain.ProcessNamer for testing
type mockNamer struct {
	mu    sync.Mutex
	names map[int32]string
	calls map[int32]int
}

func (m *mockNamer) Name(pid int32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[int32]int)
	}
	m.calls[pid]++
	if n, ok := m.names[pid]; ok {
		return n, nil
	}
	return "", domain.ErrNotFound
}

// established builds an ESTABLISHED outbound TCP connection.
func established(remoteIP string, remotePort uint16) domain.RawConnection {
	return domain.RawConnection{
		RemoteIP:   remoteIP,
		RemotePort: remotePort,
		Status:     domain.StatusEstablished,
	}
}

// blockingDNS answers every lookup with names once release is closed.
type blockingDNS struct {
	names   []string
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingDNS(names ...string) *blockingDNS {
	return &blockingDNS{
		names:   names,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (m *blockingDNS) LookupAddr(ctx context.Context, ip string) ([]string, error) {
	m.calls.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	select {
	case <-m.release:
		return m.names, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
