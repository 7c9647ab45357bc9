package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Scope decides which normalized URLs belong to the crawl
type Scope struct {
	rootHost          string // host[:port] of the root URL
	rootDomain        string // registrable domain of the root host
	extraHosts        map[string]bool
	includeSubdomains bool
	limiter           *SubdomainLimiter
	exclude           []*regexp.Regexp
	isolated          []string
}

// ScopeOptions tunes the crawl boundary beyond the root host
type ScopeOptions struct {
	IncludeSubdomains bool
	MaxSubdomains     int
	ExcludePatterns   []string
	IsolatedSections  []string
}

// NewScope builds a scope around a normalized root URL
func NewScope(root *url.URL, opts ScopeOptions) (*Scope, error) {
	s := &Scope{
		rootHost:          strings.ToLower(root.Host),
		rootDomain:        ExtractRootDomain(root.Hostname()),
		includeSubdomains: opts.IncludeSubdomains,
	}

	for _, pattern := range opts.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		s.exclude = append(s.exclude, re)
	}
	for _, section := range opts.IsolatedSections {
		if section = strings.TrimSpace(section); section != "" {
			s.isolated = append(s.isolated, section)
		}
	}

	if s.includeSubdomains {
		maxSubdomains := opts.MaxSubdomains
		if maxSubdomains < 1 {
			maxSubdomains = 1
		}
		s.limiter = NewSubdomainLimiter(maxSubdomains)
		s.limiter.Add(strings.ToLower(root.Hostname()))
	}

	return s, nil
}

// Contains reports whether a normalized URL is part of the crawl
func (s *Scope) Contains(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}

	if !s.hostAllowed(u) {
		return false
	}

	for _, re := range s.exclude {
		if re.MatchString(normalized) {
			return false
		}
	}
	return true
}

func (s *Scope) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	if host == s.rootHost || s.extraHosts[host] {
		return true
	}
	if !s.includeSubdomains {
		return false
	}

	host = strings.ToLower(u.Hostname())
	if ExtractRootDomain(host) != s.rootDomain {
		return false
	}
	if !s.limiter.CanAdd(host) {
		return false
	}
	return s.limiter.Add(host)
}

// Allow adds host[:port] to the crawl as if it were the root host.
// Returns false if the host was already in scope.
func (s *Scope) Allow(host string) bool {
	host = strings.ToLower(host)
	if host == "" || host == s.rootHost || s.extraHosts[host] {
		return false
	}
	if s.extraHosts == nil {
		s.extraHosts = make(map[string]bool)
	}
	s.extraHosts[host] = true
	return true
}

// Isolated reports whether a link from one page to another stays inside a
// shared isolated section (e.g. blog post to blog post) and must be ignored
func (s *Scope) Isolated(from, to string) bool {
	for _, section := range s.isolated {
		if strings.Contains(from, section) && strings.Contains(to, section) {
			return true
		}
	}
	return false
}
