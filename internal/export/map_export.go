package export

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/flowchart"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/sirupsen/logrus"
)

// DefaultMaxMapNodes bounds the flowchart; mermaid renderers give up on
// much larger graphs
const DefaultMaxMapNodes = 150

// MapExporter renders the sitemap as a Markdown document with a mermaid
// flowchart of the link graph.
type MapExporter struct {
	MaxNodes int
}

// NewMapExporter creates a map exporter drawing up to DefaultMaxMapNodes pages
func NewMapExporter() Exporter {
	return &MapExporter{MaxNodes: DefaultMaxMapNodes}
}

// Export writes the map document to path
func (e *MapExporter) Export(sm *storage.Sitemap, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := e.Write(file, sm); err != nil {
		return err
	}

	logrus.Infof("Wrote sitemap map to %s", path)
	return nil
}

// Write renders the map document into w
func (e *MapExporter) Write(w io.Writer, sm *storage.Sitemap) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, sm)
	e.writeGraph(md, sm)
	writeStatusChart(md, sm)
	writeDepths(md, sm)
	writeBrokenLinks(md, sm)

	if err := md.Build(); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}
	return nil
}

func writeHeader(md *markdown.Markdown, sm *storage.Sitemap) {
	md.H1("Sitemap of " + sm.Meta.RootURL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Root URL", sm.Meta.RootURL},
			{"Run ID", sm.Meta.RunID},
			{"Started", formatTime(sm.Meta.StartedAt)},
			{"Finished", formatTime(sm.Meta.FinishedAt)},
			{"Stopped because", sm.Meta.Reason},
			{"Pages", strconv.Itoa(len(sm.Nodes))},
			{"Links", strconv.Itoa(len(sm.Edges))},
			{"Broken links", strconv.Itoa(len(sm.Findings))},
		},
	})
	md.PlainText("")

	if len(sm.Findings) > 0 {
		md.Cautionf("%d broken links found. See the Broken Links section.", len(sm.Findings))
	} else {
		md.Tip("No broken links found.")
	}
	md.PlainText("")
}

// writeGraph draws nodes in discovery order. Edges to targets that were never
// fetched, or that fall past the node limit, are left out of the drawing.
func (e *MapExporter) writeGraph(md *markdown.Markdown, sm *storage.Sitemap) {
	md.H2("Link Graph")
	md.PlainText("")

	if len(sm.Nodes) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	limit := e.MaxNodes
	if limit <= 0 || limit > len(sm.Nodes) {
		limit = len(sm.Nodes)
	}

	fc := flowchart.NewFlowchart(io.Discard, flowchart.WithTitle("Link graph"))

	ids := make(map[string]string, limit)
	for i, n := range sm.Nodes[:limit] {
		id := "n" + strconv.Itoa(i)
		ids[n.URL] = id
		fc.NodeWithText(id, nodeLabel(sm.Meta.RootURL, n))
	}
	for _, edge := range sm.Edges {
		source, okSource := ids[edge.Source]
		target, okTarget := ids[edge.Target]
		if okSource && okTarget {
			fc.LinkWithArrowHead(source, target)
		}
	}

	if limit < len(sm.Nodes) {
		md.Notef("Only the first %d of %d pages are drawn.", limit, len(sm.Nodes))
		md.PlainText("")
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, fc.String())
	md.PlainText("")
}

func writeStatusChart(md *markdown.Markdown, sm *storage.Sitemap) {
	if len(sm.Nodes) == 0 {
		return
	}

	md.H2("Status Distribution")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Responses by status class"),
		piechart.WithShowData(true),
	)

	counts := make(map[string]uint64)
	for _, n := range sm.Nodes {
		counts[statusClass(n.Status)]++
	}
	for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "error"} {
		if counts[class] > 0 {
			chart.LabelAndIntValue(class, counts[class])
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeDepths(md *markdown.Markdown, sm *storage.Sitemap) {
	if len(sm.Nodes) == 0 {
		return
	}

	md.H2("Pages by Depth")
	md.PlainText("")

	items := make([]string, 0, len(sm.Nodes))
	for _, n := range sm.Nodes {
		items = append(items, fmt.Sprintf("%s (Depth: %d)", n.URL, n.Depth))
	}
	md.BulletList(items...)
	md.PlainText("")
}

func writeBrokenLinks(md *markdown.Markdown, sm *storage.Sitemap) {
	md.H2("Broken Links")
	md.PlainText("")

	if len(sm.Findings) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(sm.Findings))
	for _, f := range sm.Findings {
		rows = append(rows, []string{f.Referrer, f.URL, statusText(f)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Referrer", "Broken URL", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// nodeLabel shortens same-origin URLs to their path and marks failed pages
func nodeLabel(root string, n storage.Node) string {
	label := n.URL
	if r, err := url.Parse(root); err == nil {
		if u, err := url.Parse(n.URL); err == nil && u.Host == r.Host {
			label = u.RequestURI()
		}
	}
	if !n.OK() {
		if n.Status == 0 {
			label += " (error)"
		} else {
			label += " (" + strconv.Itoa(n.Status) + ")"
		}
	}
	// mermaid labels are quoted
	return strings.ReplaceAll(label, `"`, "#quot;")
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "error"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
