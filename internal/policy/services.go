package policy

// StaticService is a ServicePolicy backed by a fixed prefix list.
type StaticService struct {
	id       string
	domain   string
	prefixes []string
}

// NewStaticService creates a service policy.
func NewStaticService(id, domain string, prefixes ...string) *StaticService {
	return &StaticService{id: id, domain: domain, prefixes: prefixes}
}

func (s *StaticService) ID() string {
	return s.id
}

func (s *StaticService) Domain() string {
	return s.domain
}

func (s *StaticService) Prefixes() []string {
	out := make([]string, len(s.prefixes))
	copy(out, s.prefixes)
	return out
}

// DefaultServices returns the built-in offline table, in match order.
// The cloud entry is deliberately broad; it must stay after the specific ones.
func DefaultServices() []ServicePolicy {
	return []ServicePolicy{
		NewStaticService("google", "google.com", "142.250.", "172.217.", "216.58."),
		NewStaticService("facebook", "facebook.com", "157.240.", "31.13.", "69.171."),
		NewStaticService("reddit", "reddit.com", "151.101.", "199.232."),
		NewStaticService("twitter", "twitter.com", "104.244."),
		NewStaticService("aws", "amazonaws.com", "13.", "52.", "54.", "18."),
		NewStaticService("github", "github.com", "185.199."),
	}
}

// Ensure StaticService implements ServicePolicy.
var _ ServicePolicy = (*StaticService)(nil)
