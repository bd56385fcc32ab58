// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"net"
	"sync"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// FakeConnectionTable is a scripted domain.ConnectionLister.
// Each List call returns the current table; tests swap it with Set.
type FakeConnectionTable struct {
	mu    sync.Mutex
	conns []domain.RawConnection
	err   error
	calls int
}

// NewFakeConnectionTable creates a table holding conns.
func NewFakeConnectionTable(conns ...domain.RawConnection) *FakeConnectionTable {
	return &FakeConnectionTable{conns: conns}
}

// List returns a copy of the current table.
func (f *FakeConnectionTable) List(ctx context.Context) ([]domain.RawConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.RawConnection(nil), f.conns...), nil
}

// Set replaces the table contents and the error returned by List.
func (f *FakeConnectionTable) Set(err error, conns ...domain.RawConnection) {
	f.mu.Lock()
	f.conns = conns
	f.err = err
	f.mu.Unlock()
}

// Calls returns how many times List ran.
func (f *FakeConnectionTable) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Established builds an ESTABLISHED outbound TCP connection to remoteIP:remotePort.
func Established(remoteIP string, remotePort uint16) domain.RawConnection {
	return domain.RawConnection{
		RemoteIP:   remoteIP,
		RemotePort: remotePort,
		Status:     domain.StatusEstablished,
	}
}

// StaticDNS is a domain.ReverseResolver backed by a fixed PTR map.
// Unknown addresses fail like a missing PTR record.
type StaticDNS map[string][]string

// LookupAddr returns the configured names for ip.
func (s StaticDNS) LookupAddr(ctx context.Context, ip string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if names, ok := s[ip]; ok {
		return names, nil
	}
	return nil, &net.DNSError{Err: "no PTR record", Name: ip, IsNotFound: true}
}

// LoopbackPair holds one established TCP connection over 127.0.0.1.
type LoopbackPair struct {
	listener net.Listener
	client   net.Conn
	server   net.Conn
}

// NewLoopbackPair opens a listener on an ephemeral loopback port and dials it.
func NewLoopbackPair() (*LoopbackPair, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return &LoopbackPair{listener: ln, client: client, server: <-accepted}, nil
}

// Port returns the listening port.
func (p *LoopbackPair) Port() uint16 {
	return uint16(p.listener.Addr().(*net.TCPAddr).Port)
}

// Close tears down both ends and the listener.
func (p *LoopbackPair) Close() {
	_ = p.client.Close()
	if p.server != nil {
		_ = p.server.Close()
	}
	_ = p.listener.Close()
}
