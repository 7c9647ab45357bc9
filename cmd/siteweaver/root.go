package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/site-weaver/internal/config"
	"github.com/alvmarrod/site-weaver/internal/crawler"
	"github.com/alvmarrod/site-weaver/internal/export"
	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/alvmarrod/site-weaver/internal/metrics"
	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/alvmarrod/site-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const progressInterval = 10 * time.Second

var (
	errNothingToDo = errors.New("nothing to do: pass --crawl, --map, --excel or --csv")
	errNoPages     = errors.New("crawl ended before any page was fetched; previous sitemap left untouched")
)

type options struct {
	crawlURL   string
	renderMap  bool
	excel      bool
	csv        bool
	stopOn404  bool
	configPath string
	dbPath     string
	maxDepth   int
	maxPages   int
	verbose    bool
}

// NewRootCmd creates the siteweaver command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "siteweaver",
		Short: "Crawl a website into a sitemap graph and report broken links",
		Long: `siteweaver crawls every page reachable from a root URL on the same site,
stores the link graph in a sqlite artifact and reports every broken link
together with the page that referred to it.

Exports (--map, --excel, --csv) render the last artifact, or the fresh crawl
when combined with --crawl.`,
		Example: `  siteweaver --crawl https://example.com/
  siteweaver --crawl https://example.com/ --debug-stop-on-404
  siteweaver --excel --map`,
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.crawlURL, "crawl", "", "crawl the site starting at `URL` and save the sitemap")
	flags.BoolVar(&opts.renderMap, "map", false, "render the sitemap as a Markdown map with a mermaid graph")
	flags.BoolVar(&opts.excel, "excel", false, "export nodes, broken links and edges to a spreadsheet")
	flags.BoolVar(&opts.csv, "csv", false, "export broken links to CSV")
	flags.BoolVar(&opts.stopOn404, "debug-stop-on-404", false, "stop the crawl at the first broken link")
	flags.StringVarP(&opts.configPath, "config", "c", "", "JSON or YAML configuration `file`")
	flags.StringVar(&opts.dbPath, "db", "", "sitemap artifact `path` (default from config, sitemap.db)")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "maximum link depth from the root (0 = unlimited)")
	flags.IntVar(&opts.maxPages, "max-pages", 0, "maximum number of pages to fetch (0 = unlimited)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

// Execute runs the root command. The first SIGINT or SIGTERM stops the crawl
// and saves what was gathered; a second one kills the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.crawlURL == "" && !opts.renderMap && !opts.excel && !opts.csv {
		return errNothingToDo
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	configureLogging(cfg.LogLevel, opts.verbose)

	var sm *storage.Sitemap
	if opts.crawlURL != "" {
		sm, err = runCrawl(cmd.Context(), cmd.OutOrStdout(), cfg)
	} else {
		if opts.stopOn404 {
			logrus.Warn("--debug-stop-on-404 has no effect without --crawl")
		}
		sm, err = loadSitemap(cfg.DBPath)
	}
	if err != nil {
		return err
	}

	return runExports(sm, cfg, opts)
}

// loadConfig reads the config file and lets flags override it
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	cfg.RootURL = opts.crawlURL
	if flags.Changed("db") {
		cfg.DBPath = opts.dbPath
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if opts.stopOn404 {
		cfg.StopOnFirstFinding = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configureLogging(level string, verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}

// runCrawl crawls cfg.RootURL, saves the artifact and the metrics file and
// prints the broken link summary. A crawl interrupted by a signal is still
// saved; a failing root is not.
func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config) (*storage.Sitemap, error) {
	logrus.Infof("Site Weaver %s starting...", version.String())

	tracker := metrics.NewTracker()
	c, err := crawler.NewCrawler(cfg, nil, tracker)
	if err != nil {
		return nil, err
	}

	domain, _ := crawler.ExtractDomain(c.Root())
	logrus.Infof("Configuration loaded: root=%s, domain=%s, max_depth=%d, max_pages=%d, stop_on_first_finding=%v",
		c.Root(), domain, cfg.MaxDepth, cfg.MaxPages, cfg.StopOnFirstFinding)

	// Start progress logger
	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	res, err := c.Run(ctx)
	close(stopProgress)
	<-progressDone
	if err != nil {
		return nil, err
	}
	if len(res.Sitemap.Nodes) == 0 {
		return nil, fmt.Errorf("%w (%s)", errNoPages, res.Reason)
	}

	if err := saveSitemap(c.Graph(), cfg.DBPath); err != nil {
		return nil, err
	}

	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.MetricsPath, res.Reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	printSummary(out, res, tracker.GetSnapshot())
	return res.Sitemap, nil
}

func saveSitemap(graph *memory.Graph, path string) error {
	store, err := storage.NewStorage(path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if err := graph.Flush(store); err != nil {
		return err
	}
	logrus.Infof("Sitemap saved to %s", path)
	return nil
}

func loadSitemap(path string) (*storage.Sitemap, error) {
	store, err := storage.OpenStorage(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	graph, err := memory.LoadFromStorage(store)
	if err != nil {
		return nil, err
	}
	return graph.Snapshot(), nil
}

func printSummary(out io.Writer, res *crawler.Result, m storage.Metrics) {
	sm := res.Sitemap
	fmt.Fprintf(out, "Crawled %d pages, %d links, %d broken links (%s)\n",
		len(sm.Nodes), len(sm.Edges), len(sm.Findings), res.Reason)
	fmt.Fprintf(out, "Requests: %d discovered, %d fetched, %d failed, %d retries, avg %dms\n",
		m.NodesDiscovered, m.PagesFetched, m.PagesFailed, m.Retries, m.AvgFetchTimeMs)

	switch res.Reason {
	case crawler.ReasonStoppedOnFinding:
		t := res.Trigger
		logrus.WithFields(logrus.Fields{
			"referrer": t.Referrer,
			"url":      t.URL,
			"status":   t.Status,
		}).Warn("Crawl stopped at the first broken link")
		fmt.Fprintf(out, "STOPPED ON FIRST BROKEN LINK: %s (status %d) linked from %s; %d queued URLs were not fetched\n",
			t.URL, t.Status, t.Referrer, res.Unfetched)
	case crawler.ReasonMaxPages, crawler.ReasonInterrupted:
		fmt.Fprintf(out, "Crawl incomplete: %d queued URLs were not fetched\n", res.Unfetched)
	}

	export.PrintFindings(out, sm.Findings)
}

func runExports(sm *storage.Sitemap, cfg *config.Config, opts *options) error {
	targets := []struct {
		enabled  bool
		exporter export.Exporter
		path     string
	}{
		{opts.excel, export.NewExcelExporter(), cfg.ExcelPath},
		{opts.renderMap, export.NewMapExporter(), cfg.MapPath},
		{opts.csv, export.NewCSVExporter(), cfg.CSVPath},
	}

	for _, t := range targets {
		if !t.enabled {
			continue
		}
		if err := t.exporter.Export(sm, t.path); err != nil {
			return err
		}
	}
	return nil
}
