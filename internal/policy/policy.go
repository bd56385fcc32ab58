// Package policy holds the static rules used to filter and label endpoints:
// which remote addresses are local, and which IP ranges belong to well-known
// services when reverse DNS has nothing to say.
package policy

import "net/netip"

// ServicePolicy describes a well-known service recognised by IP prefix.
type ServicePolicy interface {
	// ID returns a unique identifier (e.g., "google").
	ID() string

	// Domain returns the display domain assigned on a prefix match.
	Domain() string

	// Prefixes returns textual IP prefixes (e.g., "142.250.").
	// Matched with a plain string prefix test against the dotted address.
	Prefixes() []string
}

// IsExcluded reports whether ip is a loopback or private address.
// Such endpoints never leave the host or LAN and are dropped by the sampler.
// Unparseable input is not excluded.
func IsExcluded(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate()
}
