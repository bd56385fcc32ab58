package infra

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/time/rate"

	"github.com/nightumbrella/ngsn/internal/domain"
)

const (
	DefaultLookupsPerSecond = 20
	DefaultLookupBurst      = 10
)

// DNSResolver implements domain.ReverseResolver with the system resolver,
// throttled so a burst of new remote IPs cannot flood the DNS server.
type DNSResolver struct {
	resolver *net.Resolver
	limiter  *rate.Limiter
}

// NewDNSResolver creates a rate-limited reverse resolver.
// Non-positive limits fall back to the defaults.
func NewDNSResolver(lookupsPerSecond float64, burst int) *DNSResolver {
	if lookupsPerSecond <= 0 {
		lookupsPerSecond = DefaultLookupsPerSecond
	}
	if burst <= 0 {
		burst = DefaultLookupBurst
	}
	return &DNSResolver{
		resolver: &net.Resolver{},
		limiter:  rate.NewLimiter(rate.Limit(lookupsPerSecond), burst),
	}
}

// LookupAddr waits for a limiter token then performs a PTR lookup.
// The wait shares ctx, so a caller timeout also bounds time spent throttled.
func (r *DNSResolver) LookupAddr(ctx context.Context, ip string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dns rate limit: %w", err)
	}
	return r.resolver.LookupAddr(ctx, ip)
}

// Ensure DNSResolver implements domain.ReverseResolver.
var _ domain.ReverseResolver = (*DNSResolver)(nil)
