package policy

import "strings"

// Registry holds known-service policies in match order.
// Order matters: the first policy with a matching prefix wins.
type Registry struct {
	policies []ServicePolicy
	byID     map[string]ServicePolicy
}

// NewRegistry creates a registry with all default service policies.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(DefaultServices()...)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...ServicePolicy) *Registry {
	r := &Registry{
		byID: make(map[string]ServicePolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register appends a policy. A policy with an existing ID replaces it in place.
func (r *Registry) Register(p ServicePolicy) {
	if _, ok := r.byID[p.ID()]; ok {
		for i, existing := range r.policies {
			if existing.ID() == p.ID() {
				r.policies[i] = p
				break
			}
		}
	} else {
		r.policies = append(r.policies, p)
	}
	r.byID[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (ServicePolicy, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// GetAll returns all registered policies in match order.
func (r *Registry) GetAll() []ServicePolicy {
	result := make([]ServicePolicy, len(r.policies))
	copy(result, r.policies)
	return result
}

// Lookup returns the first policy with a prefix of ip.
func (r *Registry) Lookup(ip string) (ServicePolicy, bool) {
	for _, p := range r.policies {
		for _, prefix := range p.Prefixes() {
			if strings.HasPrefix(ip, prefix) {
				return p, true
			}
		}
	}
	return nil, false
}

// Match returns the domain of the first policy owning ip.
func (r *Registry) Match(ip string) (string, bool) {
	if p, ok := r.Lookup(ip); ok {
		return p.Domain(), true
	}
	return "", false
}

// Fallback returns the matched service domain, or ip itself when nothing matches.
func (r *Registry) Fallback(ip string) string {
	if d, ok := r.Match(ip); ok {
		return d
	}
	return ip
}
