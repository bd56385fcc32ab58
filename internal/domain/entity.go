// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"strconv"
	"time"
)

// ConnStatus is the socket state as reported by the OS connection table.
type ConnStatus string

const (
	StatusEstablished ConnStatus = "ESTABLISHED"
	StatusSynSent     ConnStatus = "SYN_SENT"
	StatusSynRecv     ConnStatus = "SYN_RECV"
	StatusFinWait1    ConnStatus = "FIN_WAIT1"
	StatusFinWait2    ConnStatus = "FIN_WAIT2"
	StatusTimeWait    ConnStatus = "TIME_WAIT"
	StatusClose       ConnStatus = "CLOSE"
	StatusCloseWait   ConnStatus = "CLOSE_WAIT"
	StatusLastAck     ConnStatus = "LAST_ACK"
	StatusListen      ConnStatus = "LISTEN"
	StatusClosing     ConnStatus = "CLOSING"
	StatusNone        ConnStatus = "NONE"
)

// RawConnection is one row of the OS inet connection table.
type RawConnection struct {
	RemoteIP   string // Empty when the socket has no peer
	RemotePort uint16
	Status     ConnStatus
	PID        int32
}

// SnapshotEntry is a filtered, resolved connection produced by one sampling pass.
// Never persisted.
type SnapshotEntry struct {
	Domain     string
	IP         string
	Port       uint16
	Status     ConnStatus
	VisitCount uint64    // History counter for Domain:Port after this pass
	ObservedAt time.Time // Second precision
	PID        int32
	Process    string // Owning process name, empty if unknown
}

// TrafficRecord is the last-known aggregate for a domain across accumulation passes.
type TrafficRecord struct {
	Domain      string
	Connections uint64
	Ports       []uint16 // Ascending
	LastSeen    time.Time
	IP          string // First IP the domain was seen on
	Status      ConnStatus
}

// DomainSummary groups one display cycle's entries for a single domain.
type DomainSummary struct {
	Domain    string
	Count     int
	Ports     []string // Distinct, insertion order
	IPs       []string // Distinct, insertion order
	LastSeen  time.Time
	Status    ConnStatus
	Processes []string
}

// SummaryRow is one render-ready line of the ranked table.
type SummaryRow struct {
	DisplayName  string
	Count        int
	PortsDisplay string
	Status       ConnStatus
	LastSeen     time.Time
	Processes    string
}

// RankedSummary is the immutable result handed to the presentation shell.
type RankedSummary struct {
	Rows             []SummaryRow
	TotalConnections int
	UniqueDomains    int
	GeneratedAt      time.Time
}

// ConnectionKey builds the history counter key for a domain and port.
func ConnectionKey(domainName string, port uint16) string {
	return domainName + ":" + strconv.FormatUint(uint64(port), 10)
}
