package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alvmarrod/site-weaver/internal/storage"
)

// Tracker holds and manages crawl metrics.
// The traversal writes to it while the CLI progress logger reads it.
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime:    time.Now(),
			StatusCounts: make(map[string]int),
		},
	}
}

// IncrementNodesDiscovered increments the discovered (enqueued) URL counter
func (t *Tracker) IncrementNodesDiscovered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesDiscovered++
}

// IncrementNodesCrawled increments the crawled nodes counter
func (t *Tracker) IncrementNodesCrawled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesCrawled++
}

// IncrementEdgesRecorded increments the edges counter
func (t *Tracker) IncrementEdgesRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded++
}

// IncrementPagesFetched increments the successful fetch counter
func (t *Tracker) IncrementPagesFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
}

// IncrementPagesFailed increments the failed fetch counter
func (t *Tracker) IncrementPagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
}

// IncrementFindings increments the broken link counter
func (t *Tracker) IncrementFindings() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.FindingsRecorded++
}

// IncrementRetries increments the retried request counter
func (t *Tracker) IncrementRetries() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Retries++
}

// RecordStatus tallies the final outcome of one fetched URL by HTTP status.
// Transport failures (status 0) are counted as "error".
func (t *Tracker) RecordStatus(status int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := "error"
	if status > 0 {
		key = strconv.Itoa(status)
	}
	t.data.StatusCounts[key]++
}

// RecordFetchTime records a page fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.StatusCounts = make(map[string]int, len(t.data.StatusCounts))
	for k, v := range t.data.StatusCounts {
		snapshot.StatusCounts[k] = v
	}
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Nodes: %d discovered, %d crawled | Edges: %d | Pages: %d fetched, %d failed | Findings: %d",
		t.data.NodesDiscovered,
		t.data.NodesCrawled,
		t.data.EdgesRecorded,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.FindingsRecorded,
	)
}
