package memory

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alvmarrod/site-weaver/internal/storage"
)

func TestGraph(t *testing.T) {
	t.Parallel()

	t.Run("node url is unique", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		if err := g.AddNode(storage.Node{URL: "http://site.test/", Status: 200}); err != nil {
			t.Fatalf("AddNode() error = %v", err)
		}
		err := g.AddNode(storage.Node{URL: "http://site.test/", Status: 404})
		if !errors.Is(err, ErrDuplicateNode) {
			t.Fatalf("expected ErrDuplicateNode, got %v", err)
		}

		n, ok := g.Node("http://site.test/")
		if !ok || n.Status != 200 {
			t.Errorf("first node must win, got %+v (found=%v)", n, ok)
		}
	})

	t.Run("edge pair is unique", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		if !g.AddEdge("a", "b") {
			t.Error("first edge should be added")
		}
		if g.AddEdge("a", "b") {
			t.Error("duplicate edge should be rejected")
		}
		if !g.AddEdge("b", "a") {
			t.Error("reverse edge is a different pair")
		}

		_, edges, _ := g.GetStats()
		if edges != 2 {
			t.Errorf("expected 2 edges, got %d", edges)
		}
	})

	t.Run("snapshot is isolated from later mutations", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		_ = g.AddNode(storage.Node{URL: "a", Status: 200})
		snap := g.Snapshot()
		_ = g.AddNode(storage.Node{URL: "b", Status: 200})
		g.AddEdge("a", "b")

		if len(snap.Nodes) != 1 || len(snap.Edges) != 0 {
			t.Errorf("snapshot changed after mutation: %+v", snap)
		}
	})
}

func TestFlushAndLoad(t *testing.T) {
	t.Parallel()

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "sitemap.db"))
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	defer store.Close()

	g := NewGraph()
	g.SetMeta(storage.CrawlMeta{RunID: "run-1", RootURL: "http://site.test/", Reason: "queue_empty"})
	_ = g.AddNode(storage.Node{URL: "http://site.test/", Order: 0, Status: 200})
	_ = g.AddNode(storage.Node{URL: "http://site.test/b", Order: 1, Depth: 1, Status: 404, Referrer: "http://site.test/"})
	g.AddEdge("http://site.test/", "http://site.test/b")
	g.AddFinding(storage.Finding{Referrer: "http://site.test/", URL: "http://site.test/b", Status: 404})

	if err := g.Flush(store); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	loaded, err := LoadFromStorage(store)
	if err != nil {
		t.Fatalf("LoadFromStorage() error = %v", err)
	}

	want, got := g.Snapshot(), loaded.Snapshot()
	if !reflect.DeepEqual(got.Nodes, want.Nodes) {
		t.Errorf("nodes mismatch: got %+v, want %+v", got.Nodes, want.Nodes)
	}
	if !reflect.DeepEqual(got.Edges, want.Edges) {
		t.Errorf("edges mismatch: got %+v, want %+v", got.Edges, want.Edges)
	}
	if !reflect.DeepEqual(got.Findings, want.Findings) {
		t.Errorf("findings mismatch: got %+v, want %+v", got.Findings, want.Findings)
	}
	if loaded.Meta().RunID != "run-1" {
		t.Errorf("expected run id to survive, got %q", loaded.Meta().RunID)
	}
	if !loaded.HasEdge("http://site.test/", "http://site.test/b") {
		t.Error("loaded graph should index edges")
	}
}
