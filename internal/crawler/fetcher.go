package crawler

import (
	"context"
	"fmt"

	"github.com/alvmarrod/site-weaver/internal/config"
	"github.com/gocolly/colly/v2"
)

// Page is a fetched HTTP response
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the page was served with a 2xx status
func (p *Page) OK() bool {
	return p != nil && p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher retrieves one URL. HTTP error statuses are returned as a Page;
// the error is reserved for transport failures (timeouts, refused
// connections, DNS errors).
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// CollyFetcher fetches pages through a synchronous colly collector.
// One request is in flight at a time, so the callbacks write straight into
// the fields of the current call.
type CollyFetcher struct {
	collector *colly.Collector

	ctx  context.Context
	page *Page
	err  error
}

// NewCollyFetcher configures a collector from the crawl configuration
func NewCollyFetcher(cfg *config.Config) *CollyFetcher {
	f := &CollyFetcher{}

	f.collector = colly.NewCollector(
		colly.AllowURLRevisit(), // the Registry is the de-duplication gate
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)

	// Set request timeout
	f.collector.SetRequestTimeout(cfg.RequestTimeout())

	f.collector.OnRequest(func(r *colly.Request) {
		if f.ctx != nil && f.ctx.Err() != nil {
			r.Abort()
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		f.page = responsePage(r)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		f.err = err
		if r != nil && r.StatusCode != 0 {
			f.page = responsePage(r)
		}
	})

	return f
}

// Fetch issues a GET for rawURL and waits for the outcome
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.ctx, f.page, f.err = ctx, nil, nil
	defer func() { f.ctx = nil }()

	visitErr := f.collector.Visit(rawURL)

	page, err := f.page, f.err
	if err == nil {
		err = visitErr
	}
	if page == nil && err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			err = fmt.Errorf("no response for %s", rawURL)
		}
	}
	if page != nil {
		page.URL = rawURL
	}
	return page, err
}

func responsePage(r *colly.Response) *Page {
	page := &Page{
		StatusCode: r.StatusCode,
		Body:       r.Body,
	}
	if r.Headers != nil {
		page.ContentType = r.Headers.Get("Content-Type")
	}
	if r.Request != nil && r.Request.URL != nil {
		page.FinalURL = r.Request.URL.String()
	}
	return page
}
