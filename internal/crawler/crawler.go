package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/alvmarrod/site-weaver/internal/config"
	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/alvmarrod/site-weaver/internal/metrics"
	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Termination reasons recorded in the artifact and the metrics file
const (
	ReasonQueueEmpty       = "queue_empty"
	ReasonStoppedOnFinding = "stopped_on_finding"
	ReasonMaxPages         = "max_pages"
	ReasonInterrupted      = "interrupted"
)

var (
	// ErrInvalidRootURL is returned before traversal when the root cannot be crawled
	ErrInvalidRootURL = errors.New("invalid root URL")
	// ErrRootUnreachable is returned when the root page itself cannot be fetched
	ErrRootUnreachable = errors.New("root URL unreachable")
)

// Result is the outcome of a completed crawl
type Result struct {
	Sitemap *storage.Sitemap
	Reason  string
	// Trigger is the finding that ended an early-stop crawl
	Trigger *storage.Finding
	// Unfetched counts URLs still queued when the crawl ended
	Unfetched int
}

// Crawler is the traversal engine. It owns the queue, the visited set and
// the graph for the lifetime of one crawl.
type Crawler struct {
	cfg       *config.Config
	root      string
	fetcher   Fetcher
	scope     *Scope
	extractor *Extractor
	queue     *Queue
	visited   *Registry
	graph     *memory.Graph
	recorder  *Recorder
	tracker   *metrics.Tracker
	limiter   *rate.Limiter
	nextOrder int
	fetched   int
}

// NewCrawler validates the root URL and prepares a crawl. A nil fetcher
// selects the colly-backed HTTP fetcher; a nil tracker gets a private one.
func NewCrawler(cfg *config.Config, fetcher Fetcher, tracker *metrics.Tracker) (*Crawler, error) {
	root, err := NormalizeURL(cfg.RootURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRootURL, cfg.RootURL, err)
	}
	rootURL, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRootURL, cfg.RootURL, err)
	}

	scope, err := NewScope(rootURL, ScopeOptions{
		IncludeSubdomains: cfg.IncludeSubdomains,
		MaxSubdomains:     cfg.MaxSubdomains,
		ExcludePatterns:   cfg.ExcludePatterns,
		IsolatedSections:  cfg.IsolatedSections,
	})
	if err != nil {
		return nil, err
	}

	if fetcher == nil {
		fetcher = NewCollyFetcher(cfg)
	}
	if tracker == nil {
		tracker = metrics.NewTracker()
	}

	graph := memory.NewGraph()
	c := &Crawler{
		cfg:       cfg,
		root:      root,
		fetcher:   fetcher,
		scope:     scope,
		extractor: NewExtractor(scope),
		queue:     NewQueue(),
		visited:   NewRegistry(),
		graph:     graph,
		recorder:  NewRecorder(graph),
		tracker:   tracker,
	}
	if delay := cfg.RequestDelay(); delay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return c, nil
}

// Root returns the normalized root URL
func (c *Crawler) Root() string {
	return c.root
}

// Graph exposes the graph being built, e.g. for flushing to storage
func (c *Crawler) Graph() *memory.Graph {
	return c.graph
}

// Run crawls breadth-first from the root until the queue drains, the first
// finding is recorded in early-stop mode, the page cap is reached or ctx is
// cancelled. Only a failing root page is fatal.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now()
	logrus.Infof("Starting crawl at %s", c.root)

	c.enqueue(c.root, "", 0)

	reason := ReasonQueueEmpty

	for !c.queue.IsEmpty() {
		if ctx.Err() != nil {
			reason = ReasonInterrupted
			break
		}
		if c.cfg.MaxPages > 0 && c.fetched >= c.cfg.MaxPages {
			reason = ReasonMaxPages
			break
		}
		if err := c.wait(ctx); err != nil {
			reason = ReasonInterrupted
			break
		}

		entry, _ := c.queue.Pop()
		page, err := c.fetch(ctx, entry.URL)
		if err != nil && ctx.Err() != nil {
			// Cancelled mid-request: the page was never really fetched.
			c.queue.PushFront(entry)
			reason = ReasonInterrupted
			break
		}
		c.fetched++
		c.tracker.IncrementNodesCrawled()
		if page != nil {
			c.tracker.RecordStatus(page.StatusCode)
		} else {
			c.tracker.RecordStatus(0)
		}

		if err == nil && page.OK() {
			c.handleSuccess(entry, page)
			continue
		}

		if err := c.handleFailure(entry, page, err); err != nil {
			return nil, err
		}
		if c.cfg.StopOnFirstFinding {
			reason = ReasonStoppedOnFinding
			break
		}
	}

	c.graph.SetMeta(storage.CrawlMeta{
		SchemaVersion: storage.SchemaVersion,
		RunID:         uuid.NewString(),
		RootURL:       c.root,
		StartedAt:     startedAt.UTC(),
		FinishedAt:    time.Now().UTC(),
		Reason:        reason,
	})

	nodes, edges, findings := c.graph.GetStats()
	logrus.Infof("Crawl finished (%s): %d URLs discovered, %d nodes, %d edges, %d findings, %d URLs left unfetched",
		reason, c.visited.Len(), nodes, edges, findings, c.queue.Size())

	var trigger *storage.Finding
	if reason == ReasonStoppedOnFinding {
		if first, ok := c.recorder.First(); ok {
			trigger = &first
		}
	}

	return &Result{
		Sitemap:   c.graph.Snapshot(),
		Reason:    reason,
		Trigger:   trigger,
		Unfetched: c.queue.Size(),
	}, nil
}

// enqueue marks target as seen and appends it to the frontier, remembering the
// page it was discovered on. Returns false for URLs already seen.
func (c *Crawler) enqueue(target, referrer string, depth int) bool {
	if !c.visited.MarkSeen(target) {
		return false
	}

	c.queue.Push(storage.QueueEntry{
		URL:      target,
		Referrer: referrer,
		Depth:    depth,
		Order:    c.nextOrder,
	})
	c.nextOrder++
	c.tracker.IncrementNodesDiscovered()
	return true
}

func (c *Crawler) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// fetch performs one request plus up to RetryAttempts retries for
// transport errors and 5xx responses
func (c *Crawler) fetch(ctx context.Context, target string) (*Page, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		page, err := c.fetcher.Fetch(ctx, target)
		c.tracker.RecordFetchTime(time.Since(start))

		if !retryable(page, err) || attempt >= c.cfg.RetryAttempts || ctx.Err() != nil {
			return page, err
		}

		c.tracker.IncrementRetries()
		logrus.WithFields(logrus.Fields{
			"url":     target,
			"attempt": attempt + 1,
		}).Debug("Retrying fetch")

		select {
		case <-ctx.Done():
			return page, err
		case <-time.After(c.cfg.RetryDelay()):
		}
	}
}

func retryable(page *Page, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return page != nil && page.StatusCode >= 500
}

func (c *Crawler) handleSuccess(entry storage.QueueEntry, page *Page) {
	c.tracker.IncrementPagesFetched()

	base := entry.URL
	if page.FinalURL != "" {
		base = page.FinalURL
	}
	if entry.Referrer == "" {
		c.followRootRedirect(entry.URL, page.FinalURL)
	}

	extraction, err := c.extractor.Extract(page.Body, page.ContentType, base)
	if err != nil {
		// Malformed content contributes no links but the page still counts.
		logrus.Debugf("Failed to extract links from %s: %v", entry.URL, err)
	}

	node := storage.Node{
		URL:      entry.URL,
		Order:    entry.Order,
		Depth:    entry.Depth,
		Status:   page.StatusCode,
		Title:    extraction.Title,
		Referrer: entry.Referrer,
	}
	if err := c.graph.AddNode(node); err != nil {
		logrus.Warnf("Failed to record node %s: %v", entry.URL, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"url":    entry.URL,
		"status": page.StatusCode,
		"depth":  entry.Depth,
		"links":  len(extraction.Links),
	}).Info("Fetched page")

	nextDepth := entry.Depth + 1
	for _, link := range extraction.Links {
		if c.scope.Isolated(entry.URL, link) {
			continue
		}

		if c.graph.AddEdge(entry.URL, link) {
			c.tracker.IncrementEdgesRecorded()
		}

		if c.cfg.MaxDepth > 0 && nextDepth > c.cfg.MaxDepth {
			continue
		}
		c.enqueue(link, entry.URL, nextDepth)
	}
}

// followRootRedirect widens the scope to the host the root redirected to
// (e.g. example.com -> www.example.com). The final URL is marked seen so the
// landing page is not fetched a second time under its new name.
func (c *Crawler) followRootRedirect(requested, final string) {
	if final == "" {
		return
	}
	landing, err := NormalizeURL(final, nil)
	if err != nil || landing == requested {
		return
	}
	c.visited.MarkSeen(landing)

	u, err := url.Parse(landing)
	if err != nil {
		return
	}
	if c.scope.Allow(u.Host) {
		logrus.WithFields(logrus.Fields{
			"root":    requested,
			"landing": landing,
		}).Warn("Root URL redirected to another host; crawling that host too")
	}
}

// handleFailure records a failed page and its finding. A failing root has
// no referrer to blame and ends the crawl with ErrRootUnreachable.
func (c *Crawler) handleFailure(entry storage.QueueEntry, page *Page, fetchErr error) error {
	c.tracker.IncrementPagesFailed()

	status := 0
	if page != nil {
		status = page.StatusCode
	}
	errMsg := ""
	if fetchErr != nil {
		errMsg = fetchErr.Error()
	}

	if entry.Referrer == "" {
		if fetchErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrRootUnreachable, entry.URL, fetchErr)
		}
		return fmt.Errorf("%w: %s returned status %d", ErrRootUnreachable, entry.URL, status)
	}

	node := storage.Node{
		URL:      entry.URL,
		Order:    entry.Order,
		Depth:    entry.Depth,
		Status:   status,
		Error:    errMsg,
		Referrer: entry.Referrer,
	}
	if err := c.graph.AddNode(node); err != nil {
		return fmt.Errorf("failed to record node %s: %w", entry.URL, err)
	}

	if _, err := c.recorder.Record(entry.Referrer, entry.URL, status, errMsg); err != nil {
		return err
	}
	c.tracker.IncrementFindings()
	return nil
}
