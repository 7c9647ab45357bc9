package crawler

// Registry is the visited set: every URL that has been queued or fetched.
// It is the only de-duplication gate in front of the queue.
type Registry struct {
	seen map[string]struct{}
}

// NewRegistry creates an empty visited set
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// MarkSeen records url and returns true if it had not been seen before.
// URLs are normalized with NormalizeURL first, so variants of one page
// collapse into a single entry.
func (r *Registry) MarkSeen(url string) bool {
	key := registryKey(url)
	if _, exists := r.seen[key]; exists {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct URLs marked
func (r *Registry) Len() int {
	return len(r.seen)
}

func registryKey(url string) string {
	if normalized, err := NormalizeURL(url, nil); err == nil {
		return normalized
	}
	return url
}
