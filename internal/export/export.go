package export

import (
	"github.com/alvmarrod/site-weaver/internal/storage"
)

// Exporter renders a sitemap snapshot into a file
type Exporter interface {
	// Export writes the sitemap to path
	Export(sm *storage.Sitemap, path string) error
}
