package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nightumbrella/ngsn/internal/domain"
)

// maxDisplayPorts is how many ports a row lists before collapsing to "(+N)".
const maxDisplayPorts = 3

type group struct {
	summary   domain.DomainSummary
	portSeen  map[string]struct{}
	ipSeen    map[string]struct{}
	procsSeen map[string]struct{}
}

// GroupByDomain folds a snapshot into per-domain summaries in encounter order.
func GroupByDomain(snapshot []domain.SnapshotEntry) []domain.DomainSummary {
	index := make(map[string]*group)
	order := make([]*group, 0)

	for _, e := range snapshot {
		g, ok := index[e.Domain]
		if !ok {
			g = &group{
				summary: domain.DomainSummary{
					Domain: e.Domain,
					Status: e.Status,
				},
				portSeen:  make(map[string]struct{}),
				ipSeen:    make(map[string]struct{}),
				procsSeen: make(map[string]struct{}),
			}
			index[e.Domain] = g
			order = append(order, g)
		}

		s := &g.summary
		s.Count++

		port := strconv.FormatUint(uint64(e.Port), 10)
		if _, seen := g.portSeen[port]; !seen {
			g.portSeen[port] = struct{}{}
			s.Ports = append(s.Ports, port)
		}
		if _, seen := g.ipSeen[e.IP]; !seen {
			g.ipSeen[e.IP] = struct{}{}
			s.IPs = append(s.IPs, e.IP)
		}
		if e.Process != "" {
			if _, seen := g.procsSeen[e.Process]; !seen {
				g.procsSeen[e.Process] = struct{}{}
				s.Processes = append(s.Processes, e.Process)
			}
		}
		if e.ObservedAt.After(s.LastSeen) {
			s.LastSeen = e.ObservedAt
		}
	}

	out := make([]domain.DomainSummary, len(order))
	for i, g := range order {
		out[i] = g.summary
	}
	return out
}

// Summarize reduces a snapshot into the ranked, render-ready table.
// Rows are ordered by connection count, highest first; equal counts keep
// the order in which their domains were first encountered.
func Summarize(snapshot []domain.SnapshotEntry, now time.Time) domain.RankedSummary {
	groups := GroupByDomain(snapshot)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	result := domain.RankedSummary{
		Rows:          make([]domain.SummaryRow, 0, len(groups)),
		UniqueDomains: len(groups),
		GeneratedAt:   now,
	}

	for _, g := range groups {
		result.Rows = append(result.Rows, domain.SummaryRow{
			DisplayName:  DisplayName(g),
			Count:        g.Count,
			PortsDisplay: PortsDisplay(g.Ports),
			Status:       g.Status,
			LastSeen:     g.LastSeen,
			Processes:    strings.Join(g.Processes, ", "),
		})
		result.TotalConnections += g.Count
	}
	return result
}

// PortsDisplay lists up to three ports in ascending string order, e.g.
// {80,443,8080,8443} -> "443, 80, 8080 (+1)".
func PortsDisplay(ports []string) string {
	sorted := make([]string, len(ports))
	copy(sorted, ports)
	sort.Strings(sorted)

	shown := sorted
	if len(shown) > maxDisplayPorts {
		shown = shown[:maxDisplayPorts]
	}

	out := strings.Join(shown, ", ")
	if extra := len(sorted) - maxDisplayPorts; extra > 0 {
		out += fmt.Sprintf(" (+%d)", extra)
	}
	return out
}

// DisplayName shows the domain, annotated with its first IP when the two differ.
func DisplayName(s domain.DomainSummary) string {
	if len(s.IPs) == 0 || s.Domain == s.IPs[0] {
		return s.Domain
	}
	return fmt.Sprintf("%s (%s)", s.Domain, s.IPs[0])
}
