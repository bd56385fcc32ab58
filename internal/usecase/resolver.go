// Package usecase contains application business logic.
package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nightumbrella/ngsn/internal/domain"
	"github.com/nightumbrella/ngsn/internal/metrics"
	"github.com/nightumbrella/ngsn/internal/policy"
)

// Resolver implements domain.DomainResolver.
// Lookup order: cache, reverse DNS, known-service table, the IP itself.
type Resolver struct {
	dns      domain.ReverseResolver
	services *policy.Registry
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	cache map[string]string
	// gen advances on Clear; lookups started under an older gen are not stored.
	gen uint64

	// Collapses concurrent first lookups of one IP within a generation.
	inflight singleflight.Group
}

// NewResolver creates a caching domain resolver.
func NewResolver(
	dns domain.ReverseResolver,
	services *policy.Registry,
	timeout time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Resolver {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	return &Resolver{
		dns:      dns,
		services: services,
		timeout:  timeout,
		logger:   logger.Named("resolver"),
		metrics:  m,
		cache:    make(map[string]string),
	}
}

// Resolve returns the display domain for ip. It never fails.
func (r *Resolver) Resolve(ctx context.Context, ip string) string {
	d, gen, ok := r.cachedGen(ip)
	if ok {
		r.metrics.DNSLookups.WithLabelValues(metrics.ResultHit).Inc()
		return d
	}

	key := strconv.FormatUint(gen, 10) + "/" + ip
	v, _, _ := r.inflight.Do(key, func() (interface{}, error) {
		// Another caller may have filled the cache while we queued.
		if d, ok := r.cached(ip); ok {
			return d, nil
		}

		d, resolved := r.lookup(ctx, ip)
		if !resolved && ctx.Err() != nil {
			// Shutting down: answer, but leave the IP eligible for DNS later.
			return d, nil
		}

		r.mu.Lock()
		if r.gen != gen {
			// Cleared mid-lookup: the answer belongs to the old cache.
			r.mu.Unlock()
			return d, nil
		}
		r.cache[ip] = d
		size := len(r.cache)
		r.mu.Unlock()
		r.metrics.CacheSize.Set(float64(size))

		if resolved {
			r.metrics.DNSLookups.WithLabelValues(metrics.ResultResolved).Inc()
		} else {
			r.metrics.DNSLookups.WithLabelValues(metrics.ResultFallback).Inc()
		}
		return d, nil
	})
	return v.(string)
}

// lookup tries reverse DNS, falling back to the service table.
func (r *Resolver) lookup(ctx context.Context, ip string) (string, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := r.dns.LookupAddr(lookupCtx, ip)
	if err == nil && len(names) > 0 {
		if d := RegistrableDomain(names[0]); d != "" {
			return d, true
		}
	}

	fallback := r.services.Fallback(ip)
	r.logger.Debug("reverse lookup failed, using fallback",
		zap.String("ip", ip),
		zap.String("domain", fallback),
		zap.Error(err))
	return fallback, false
}

func (r *Resolver) cached(ip string) (string, bool) {
	d, _, ok := r.cachedGen(ip)
	return d, ok
}

func (r *Resolver) cachedGen(ip string) (string, uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.cache[ip]
	return d, r.gen, ok
}

// Clear empties the cache. Lookups already in flight still answer their
// callers but are not cached.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.gen++
	r.mu.Unlock()
	r.metrics.CacheSize.Set(0)
}

// Len returns the number of cached IPs.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// RegistrableDomain reduces a host name to its last two labels after
// dropping a trailing dot and a leading "www.".
// Naive for multi-label public suffixes: "bbc.co.uk" becomes "co.uk".
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// Ensure Resolver implements domain.DomainResolver.
var _ domain.DomainResolver = (*Resolver)(nil)
