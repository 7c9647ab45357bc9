package export

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

func sampleSitemap() *storage.Sitemap {
	return &storage.Sitemap{
		Meta: storage.CrawlMeta{
			SchemaVersion: storage.SchemaVersion,
			RunID:         "run-1",
			RootURL:       "https://example.com/",
			StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			FinishedAt:    time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
			Reason:        "queue_empty",
		},
		Nodes: []storage.Node{
			{URL: "https://example.com/", Order: 0, Depth: 0, Status: 200, Title: "Home"},
			{URL: "https://example.com/a", Order: 1, Depth: 1, Status: 200, Title: `Say "hi"`, Referrer: "https://example.com/"},
			{URL: "https://example.com/b", Order: 2, Depth: 1, Status: 404, Referrer: "https://example.com/"},
			{URL: "https://example.com/slow", Order: 3, Depth: 2, Error: "timeout", Referrer: "https://example.com/a"},
		},
		Edges: []storage.Edge{
			{Source: "https://example.com/", Target: "https://example.com/a"},
			{Source: "https://example.com/", Target: "https://example.com/b"},
			{Source: "https://example.com/a", Target: "https://example.com/slow"},
			{Source: "https://example.com/a", Target: "https://example.com/never-fetched"},
		},
		Findings: []storage.Finding{
			{Referrer: "https://example.com/", URL: "https://example.com/b", Status: 404},
			{Referrer: "https://example.com/a", URL: "https://example.com/slow", Error: "timeout"},
		},
	}
}

func TestExcelExporter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sitemap.xlsx")
	if err := NewExcelExporter().Export(sampleSitemap(), path); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{SheetNodes, SheetFindings, SheetEdges}) {
		t.Errorf("sheets = %v", got)
	}

	nodes, err := f.GetRows(SheetNodes)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", SheetNodes, err)
	}
	if len(nodes) != 5 {
		t.Fatalf("expected header + 4 node rows, got %d", len(nodes))
	}
	if nodes[0][0] != "URL" || nodes[0][1] != "Status" {
		t.Errorf("unexpected node header %v", nodes[0])
	}
	if nodes[3][0] != "https://example.com/b" || nodes[3][1] != "404" {
		t.Errorf("unexpected node row %v", nodes[3])
	}

	findings, err := f.GetRows(SheetFindings)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", SheetFindings, err)
	}
	if len(findings) != 3 || findings[1][0] != "https://example.com/" || findings[1][1] != "https://example.com/b" {
		t.Errorf("unexpected findings sheet %v", findings)
	}

	edges, err := f.GetRows(SheetEdges)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", SheetEdges, err)
	}
	if len(edges) != 5 {
		t.Errorf("expected header + 4 edge rows, got %d", len(edges))
	}
}

func TestCSVExporter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.csv")
	if err := NewCSVExporter().Export(sampleSitemap(), path); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var rows []BrokenLinkRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		t.Fatalf("UnmarshalFile() error = %v", err)
	}

	want := []BrokenLinkRow{
		{Referrer: "https://example.com/", URL: "https://example.com/b", Status: 404},
		{Referrer: "https://example.com/a", URL: "https://example.com/slow", Error: "timeout"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %+v, want %+v", rows, want)
	}

	raw, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(raw), "Referrer,Broken URL,Status,Error") {
		t.Errorf("unexpected header in %q", raw)
	}
}

func TestMapExporter(t *testing.T) {
	t.Parallel()

	t.Run("full document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		e := &MapExporter{MaxNodes: DefaultMaxMapNodes}
		if err := e.Write(&buf, sampleSitemap()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out := buf.String()

		for _, want := range []string{
			"# Sitemap of https://example.com/",
			"```mermaid",
			"flowchart",
			"pie",
			"/b (404)",
			"/slow (error)",
			"https://example.com/a (Depth: 1)",
			"## Broken Links",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("map is missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "never-fetched") {
			t.Error("unfetched targets must not be drawn")
		}
	})

	t.Run("node limit", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		e := &MapExporter{MaxNodes: 2}
		if err := e.Write(&buf, sampleSitemap()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "Only the first 2 of 4 pages are drawn.") {
			t.Errorf("expected a truncation note:\n%s", buf.String())
		}
		if strings.Contains(buf.String(), "n2") {
			t.Error("nodes past the limit should not be drawn")
		}
	})

	t.Run("empty sitemap", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "map.md")
		if err := NewMapExporter().Export(&storage.Sitemap{}, path); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), "No pages were crawled.") {
			t.Errorf("unexpected empty map:\n%s", raw)
		}
	})
}

func TestPrintFindings(t *testing.T) {
	t.Parallel()

	t.Run("grouped by referrer", func(t *testing.T) {
		t.Parallel()

		findings := []storage.Finding{
			{Referrer: "https://example.com/", URL: "https://example.com/x", Status: 404},
			{Referrer: "https://example.com/a", URL: "https://example.com/y", Status: 500},
			{Referrer: "https://example.com/", URL: "https://example.com/z", Error: "refused"},
		}

		var buf bytes.Buffer
		PrintFindings(&buf, findings)
		out := buf.String()

		if strings.Count(out, "https://example.com/a ") != 1 {
			t.Errorf("each referrer should be printed once:\n%s", out)
		}
		for _, want := range []string{"Broken Links", "404", "500", "error: refused"} {
			if !strings.Contains(out, want) {
				t.Errorf("table is missing %q:\n%s", want, out)
			}
		}
		if strings.Index(out, "/x") > strings.Index(out, "/z") || strings.Index(out, "/z") > strings.Index(out, "/y") {
			t.Errorf("findings should be grouped under their first referrer:\n%s", out)
		}
	})

	t.Run("no findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		PrintFindings(&buf, nil)
		if !strings.Contains(buf.String(), "No broken links found.") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}
