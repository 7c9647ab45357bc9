package storage

import "time"

// SchemaVersion is the artifact schema written by SaveSitemap
const SchemaVersion = 1

// Node represents one fetched URL in the sitemap
type Node struct {
	URL      string `json:"url"`
	Order    int    `json:"order"`
	Depth    int    `json:"depth"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// OK reports whether the node was fetched with a 2xx status
func (n Node) OK() bool {
	return n.Error == "" && n.Status >= 200 && n.Status < 300
}

// Edge represents a directed link between two pages, referenced by URL
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Finding represents one broken link and the page it was discovered on
type Finding struct {
	Referrer string `json:"referrer"`
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`
}

// QueueEntry represents an item in the BFS crawl queue
type QueueEntry struct {
	URL      string
	Referrer string
	Depth    int
	Order    int
}

// CrawlMeta describes the run that produced an artifact
type CrawlMeta struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	RootURL       string    `json:"root_url"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Reason        string    `json:"termination_reason"`
}

// Sitemap is a complete, read-only snapshot of a crawl
type Sitemap struct {
	Meta     CrawlMeta
	Nodes    []Node
	Edges    []Edge
	Findings []Finding
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	NodesDiscovered   int            `json:"nodes_discovered"`
	NodesCrawled      int            `json:"nodes_crawled"`
	EdgesRecorded     int            `json:"edges_recorded"`
	PagesFetched      int            `json:"pages_fetched"`
	PagesFailed       int            `json:"pages_failed"`
	FindingsRecorded  int            `json:"findings_recorded"`
	Retries           int            `json:"retries"`
	StatusCounts      map[string]int `json:"status_counts"`
	TotalFetchTimeMs  int64          `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64          `json:"avg_fetch_time_ms"`
	TerminationReason string         `json:"termination_reason"`
}
