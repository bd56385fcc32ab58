package infra

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/nightumbrella/ngsn/internal/domain"
)

var errNoOwner = errors.New("socket has no owning process")

// ProcessNamerImpl implements domain.ProcessNamer using gopsutil.
type ProcessNamerImpl struct{}

// NewProcessNamer creates a new process namer.
func NewProcessNamer() domain.ProcessNamer {
	return &ProcessNamerImpl{}
}

// Name returns the executable name for pid.
// PID 0 means the OS did not attribute the socket to a process.
func (pn *ProcessNamerImpl) Name(pid int32) (string, error) {
	if pid <= 0 {
		return "", errNoOwner
	}

	p, err := process.NewProcess(pid)
	if err != nil {
		return "", classifyOSError(err)
	}

	name, err := p.Name()
	if err != nil {
		return "", classifyOSError(err) // Process may have exited
	}
	return name, nil
}

// Ensure ProcessNamerImpl implements domain.ProcessNamer.
var _ domain.ProcessNamer = (*ProcessNamerImpl)(nil)
