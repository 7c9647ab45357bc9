package crawler

import (
	"net/url"
	"testing"
)

func newTestScope(t *testing.T, root string, opts ScopeOptions) *Scope {
	t.Helper()

	u, err := url.Parse(root)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewScope(u, opts)
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}
	return s
}

func TestScopeContains(t *testing.T) {
	t.Parallel()

	t.Run("same host only by default", func(t *testing.T) {
		t.Parallel()

		s := newTestScope(t, "https://www.example.com/", ScopeOptions{})
		cases := map[string]bool{
			"https://www.example.com/a":      true,
			"http://www.example.com/a":       true,
			"https://blog.example.com/":      false,
			"https://example.com/":           false,
			"https://www.example.com:8443/x": false,
			"https://other.org/":             false,
		}
		for u, want := range cases {
			if got := s.Contains(u); got != want {
				t.Errorf("Contains(%q) = %v, want %v", u, got, want)
			}
		}
	})

	t.Run("subdomains are capped", func(t *testing.T) {
		t.Parallel()

		s := newTestScope(t, "https://www.example.com/", ScopeOptions{
			IncludeSubdomains: true,
			MaxSubdomains:     2,
		})
		if !s.Contains("https://blog.example.com/post") {
			t.Error("first extra subdomain should be allowed")
		}
		if s.Contains("https://shop.example.com/") {
			t.Error("subdomain beyond the cap should be rejected")
		}
		if !s.Contains("https://blog.example.com/other") {
			t.Error("known subdomain should stay allowed")
		}
		if s.Contains("https://example.org/") {
			t.Error("different registrable domain must be rejected")
		}
	})

	t.Run("invalid exclude pattern", func(t *testing.T) {
		t.Parallel()

		u, _ := url.Parse("https://example.com/")
		if _, err := NewScope(u, ScopeOptions{ExcludePatterns: []string{"("}}); err == nil {
			t.Error("expected an error for an invalid regex")
		}
	})
}

func TestScopeAllow(t *testing.T) {
	t.Parallel()

	s := newTestScope(t, "http://example.com/", ScopeOptions{})
	if s.Contains("http://www.example.com/a") {
		t.Fatal("www host should be out of scope before Allow")
	}
	if !s.Allow("WWW.example.com") {
		t.Error("Allow() should report a newly added host")
	}
	if s.Allow("www.example.com") || s.Allow("example.com") {
		t.Error("Allow() should report hosts already in scope")
	}
	if !s.Contains("http://www.example.com/a") || !s.Contains("http://example.com/b") {
		t.Error("both hosts should be in scope")
	}
	if s.Contains("http://www.example.com:8080/a") {
		t.Error("ports are part of the allowed host")
	}
}

func TestScopeIsolated(t *testing.T) {
	t.Parallel()

	s := newTestScope(t, "https://example.com/", ScopeOptions{IsolatedSections: []string{"/blog/", " "}})

	if !s.Isolated("https://example.com/blog/a", "https://example.com/blog/b") {
		t.Error("blog to blog should be isolated")
	}
	if s.Isolated("https://example.com/blog/a", "https://example.com/about") {
		t.Error("leaving the section is allowed")
	}
	if s.Isolated("https://example.com/", "https://example.com/blog/a") {
		t.Error("entering the section is allowed")
	}
}

func TestSubdomainLimiter(t *testing.T) {
	t.Parallel()

	sl := NewSubdomainLimiter(2)
	if !sl.Add("a.example.com") || !sl.Add("b.example.com") {
		t.Fatal("first two subdomains should be accepted")
	}
	if sl.CanAdd("c.example.com") || sl.Add("c.example.com") {
		t.Error("third subdomain should be rejected")
	}
	if !sl.CanAdd("a.example.com") {
		t.Error("registered subdomain should remain addable")
	}
	if !sl.Add("x.other.com") {
		t.Error("limits are per root domain")
	}
}
