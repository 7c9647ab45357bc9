package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrEmptyURL is returned for blank hrefs
	ErrEmptyURL = errors.New("empty url")
	// ErrUnsupportedScheme is returned for anything other than http and https
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrMissingHost is returned when a URL resolves without a host
	ErrMissingHost = errors.New("missing host")
)

// NormalizeURL resolves rawURL against base (which may be nil) and returns
// its canonical form. Two URLs that name the same page normalize to the same
// string, and NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
//
// Policy: lowercase scheme and host, default ports dropped, fragment and
// userinfo dropped, empty path becomes "/", trailing slashes are removed from
// every path but the root, query parameters are sorted by key and an empty
// query is dropped.
func NormalizeURL(rawURL string, base *url.URL) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrMissingHost
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}

	u.ForceQuery = false
	u.RawQuery = sortQuery(u.RawQuery)

	return u.String(), nil
}

// sortQuery orders raw key[=value] pairs by key, keeping the order of values
// for repeated keys. Pairs are not decoded, so "?amp" stays "?amp".
func sortQuery(raw string) string {
	var pairs []string
	for _, pair := range strings.Split(raw, "&") {
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return queryKey(pairs[i]) < queryKey(pairs[j])
	})
	return strings.Join(pairs, "&")
}

func queryKey(pair string) string {
	key, _, _ := strings.Cut(pair, "=")
	return key
}

// ExtractDomain extracts the lowercase hostname from a URL string
func ExtractDomain(urlStr string) (string, error) {
	// Handle protocol-relative URLs
	if strings.HasPrefix(urlStr, "//") {
		urlStr = "https:" + urlStr
	}

	// Relative URLs have no domain of their own
	if !strings.Contains(urlStr, "://") {
		return "", nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// ExtractRootDomain returns the registrable domain of a host.
// Example: blog.example.co.uk -> example.co.uk
// IP addresses and single-label hosts are returned unchanged.
func ExtractRootDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if net.ParseIP(domain) != nil || !strings.Contains(domain, ".") {
		return domain
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return root
}
