package crawler

import (
	"fmt"

	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Recorder appends broken link findings to the graph. The referrer is the
// page the link was discovered on, carried by the queue entry since enqueue.
type Recorder struct {
	graph    *memory.Graph
	findings []storage.Finding
}

// NewRecorder creates a recorder writing into graph
func NewRecorder(graph *memory.Graph) *Recorder {
	return &Recorder{graph: graph}
}

// Record appends a finding. The referrer must be a successfully fetched node.
func (r *Recorder) Record(referrer, brokenURL string, status int, errMsg string) (storage.Finding, error) {
	ref, exists := r.graph.Node(referrer)
	if !exists {
		return storage.Finding{}, fmt.Errorf("referrer %s of %s was never fetched", referrer, brokenURL)
	}
	if !ref.OK() {
		return storage.Finding{}, fmt.Errorf("referrer %s of %s failed with status %d", referrer, brokenURL, ref.Status)
	}

	finding := storage.Finding{
		Referrer: referrer,
		URL:      brokenURL,
		Status:   status,
		Error:    errMsg,
	}
	r.graph.AddFinding(finding)
	r.findings = append(r.findings, finding)

	logrus.WithFields(logrus.Fields{
		"referrer": referrer,
		"url":      brokenURL,
		"status":   status,
	}).Warn("Broken link")

	return finding, nil
}

// Len returns the number of findings recorded
func (r *Recorder) Len() int {
	return len(r.findings)
}

// First returns the earliest finding, if any
func (r *Recorder) First() (storage.Finding, bool) {
	if len(r.findings) == 0 {
		return storage.Finding{}, false
	}
	return r.findings[0], true
}
