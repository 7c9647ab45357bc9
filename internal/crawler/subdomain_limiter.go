package crawler

// SubdomainLimiter enforces max subdomains per root domain when a crawl
// is allowed to wander into subdomains of the root site
type SubdomainLimiter struct {
	maxPerRoot int
	// Map: rootDomain -> set of subdomains
	subdomains map[string]map[string]bool
}

// NewSubdomainLimiter creates a new subdomain limiter
func NewSubdomainLimiter(maxPerRoot int) *SubdomainLimiter {
	return &SubdomainLimiter{
		maxPerRoot: maxPerRoot,
		subdomains: make(map[string]map[string]bool),
	}
}

// CanAdd checks if a domain can be added without exceeding the limit.
// Does NOT modify state - use Add() to register the domain
func (sl *SubdomainLimiter) CanAdd(domain string) bool {
	subdomainSet, exists := sl.subdomains[ExtractRootDomain(domain)]
	if !exists {
		return true
	}
	if subdomainSet[domain] {
		return true
	}
	return len(subdomainSet) < sl.maxPerRoot
}

// Add registers a domain with the limiter.
// Returns true if added successfully, false if limit exceeded
func (sl *SubdomainLimiter) Add(domain string) bool {
	rootDomain := ExtractRootDomain(domain)

	if sl.subdomains[rootDomain] == nil {
		sl.subdomains[rootDomain] = make(map[string]bool)
	}
	subdomainSet := sl.subdomains[rootDomain]

	if subdomainSet[domain] {
		return true
	}
	if len(subdomainSet) >= sl.maxPerRoot {
		return false
	}

	subdomainSet[domain] = true
	return true
}
