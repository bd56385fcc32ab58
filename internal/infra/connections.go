// Package infra implements infrastructure concerns (OS tables, DNS, config, logging).
package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// DefaultConnectionKind asks gopsutil for TCP and UDP over IPv4 and IPv6.
const DefaultConnectionKind = "inet"

type listFunc func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)

// ConnectionListerImpl implements domain.ConnectionLister using gopsutil.
type ConnectionListerImpl struct {
	kind string
	list listFunc
}

// NewConnectionLister creates a lister for the given gopsutil connection kind.
// An empty kind means DefaultConnectionKind.
func NewConnectionLister(kind string) domain.ConnectionLister {
	if kind == "" {
		kind = DefaultConnectionKind
	}
	return &ConnectionListerImpl{
		kind: kind,
		list: psnet.ConnectionsWithContext,
	}
}

// List returns the current OS connection table.
func (l *ConnectionListerImpl) List(ctx context.Context) ([]domain.RawConnection, error) {
	stats, err := l.list(ctx, l.kind)
	if err != nil {
		return nil, classifyOSError(err)
	}

	conns := make([]domain.RawConnection, 0, len(stats))
	for _, s := range stats {
		conns = append(conns, domain.RawConnection{
			RemoteIP:   s.Raddr.IP,
			RemotePort: uint16(s.Raddr.Port),
			Status:     statusOf(s.Status),
			PID:        s.Pid,
		})
	}
	return conns, nil
}

// classifyOSError maps permission and vanished-process failures onto domain sentinels.
func classifyOSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", domain.ErrAccessDenied, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, process.ErrorProcessNotRunning):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	default:
		return fmt.Errorf("os query failed: %w", err)
	}
}

func statusOf(s string) domain.ConnStatus {
	if s == "" {
		return domain.StatusNone
	}
	return domain.ConnStatus(s)
}

// Ensure ConnectionListerImpl implements domain.ConnectionLister.
var _ domain.ConnectionLister = (*ConnectionListerImpl)(nil)
