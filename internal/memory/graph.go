package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateNode is returned when a URL is recorded as a node twice
var ErrDuplicateNode = errors.New("node already recorded")

type edgeKey struct {
	source string
	target string
}

// Graph holds the sitemap in memory while a crawl is running.
// It is owned by a single traversal and is not safe for concurrent use.
type Graph struct {
	nodes     []storage.Node
	nodeIndex map[string]int // url -> position in nodes
	edges     []storage.Edge
	edgeIndex map[edgeKey]struct{}
	findings  []storage.Finding
	meta      storage.CrawlMeta
}

// NewGraph creates an empty in-memory graph
func NewGraph() *Graph {
	return &Graph{
		nodes:     make([]storage.Node, 0),
		nodeIndex: make(map[string]int),
		edges:     make([]storage.Edge, 0),
		edgeIndex: make(map[edgeKey]struct{}),
		findings:  make([]storage.Finding, 0),
	}
}

// FromSitemap rebuilds a graph from a persisted snapshot
func FromSitemap(sm *storage.Sitemap) (*Graph, error) {
	g := NewGraph()
	g.meta = sm.Meta
	for _, n := range sm.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range sm.Edges {
		g.AddEdge(e.Source, e.Target)
	}
	for _, f := range sm.Findings {
		g.AddFinding(f)
	}
	return g, nil
}

// SetMeta records run provenance for the snapshot
func (g *Graph) SetMeta(meta storage.CrawlMeta) {
	g.meta = meta
}

// Meta returns the run provenance
func (g *Graph) Meta() storage.CrawlMeta {
	return g.meta
}

// AddNode records a fetched URL. A URL can only be recorded once.
func (g *Graph) AddNode(node storage.Node) error {
	if g.HasNode(node.URL) {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.URL)
	}
	g.nodeIndex[node.URL] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	return nil
}

// Node retrieves a node by URL
func (g *Graph) Node(url string) (storage.Node, bool) {
	idx, exists := g.nodeIndex[url]
	if !exists {
		return storage.Node{}, false
	}
	return g.nodes[idx], true
}

// HasNode reports whether url has been recorded
func (g *Graph) HasNode(url string) bool {
	_, exists := g.nodeIndex[url]
	return exists
}

// AddEdge records a link, returning false if the pair already exists
func (g *Graph) AddEdge(source, target string) bool {
	if g.HasEdge(source, target) {
		return false
	}
	g.edgeIndex[edgeKey{source: source, target: target}] = struct{}{}
	g.edges = append(g.edges, storage.Edge{Source: source, Target: target})
	return true
}

// HasEdge reports whether the source -> target pair has been recorded
func (g *Graph) HasEdge(source, target string) bool {
	_, exists := g.edgeIndex[edgeKey{source: source, target: target}]
	return exists
}

// AddFinding appends a broken link record
func (g *Graph) AddFinding(f storage.Finding) {
	g.findings = append(g.findings, f)
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (nodeCount, edgeCount, findingCount int) {
	return len(g.nodes), len(g.edges), len(g.findings)
}

// Snapshot returns a copy of the graph that later mutations cannot affect
func (g *Graph) Snapshot() *storage.Sitemap {
	sm := &storage.Sitemap{
		Meta:     g.meta,
		Nodes:    make([]storage.Node, len(g.nodes)),
		Edges:    make([]storage.Edge, len(g.edges)),
		Findings: make([]storage.Finding, len(g.findings)),
	}
	copy(sm.Nodes, g.nodes)
	copy(sm.Edges, g.edges)
	copy(sm.Findings, g.findings)
	return sm
}

// Flush writes the whole graph to SQLite storage
func (g *Graph) Flush(store *storage.Storage) error {
	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	if err := store.SaveSitemap(g.Snapshot()); err != nil {
		return fmt.Errorf("failed to flush graph: %w", err)
	}

	logrus.Infof("Flush complete: %d nodes, %d edges, %d findings written in %v",
		len(g.nodes), len(g.edges), len(g.findings), time.Since(startTime))
	return nil
}

// LoadFromStorage populates a graph from a persisted artifact
func LoadFromStorage(store *storage.Storage) (*Graph, error) {
	logrus.Info("Loading sitemap from database into memory...")

	sm, err := store.LoadSitemap()
	if err != nil {
		return nil, fmt.Errorf("failed to load sitemap: %w", err)
	}

	g, err := FromSitemap(sm)
	if err != nil {
		return nil, fmt.Errorf("artifact is inconsistent: %w", err)
	}

	logrus.Infof("Loaded %d nodes, %d edges, %d findings into memory", len(g.nodes), len(g.edges), len(g.findings))
	return g, nil
}
