package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/extract"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Extractor turns a fetched HTML document into a page.
type Extractor interface {
	Extract(document []byte, baseURL *url.URL) (*extract.Page, error)
}

var errNotHTML = errors.New("not an html document")

// skippedExtensions are link targets that are never HTML pages.
var skippedExtensions = map[string]bool{
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true, ".ico": true, ".bmp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".webm": true, ".wav": true,
	".css": true, ".js": true, ".json": true, ".xml": true, ".rss": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".exe": true, ".dmg": true, ".apk": true,
}

// Crawler performs bounded breadth-first crawls of a single origin.
// It is safe for concurrent use; concurrent crawls of the same start URL
// share one traversal.
type Crawler struct {
	config    *Config
	fetcher   *fetcher
	extractor Extractor
	flights   singleflight.Group
	logger    *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "crawler")
		return nil
	}
}

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		c.fetcher = newFetcher(client, c.config)
		return nil
	}
}

// WithExtractor replaces the default HTML extractor.
func WithExtractor(extractor Extractor) Option {
	return func(c *Crawler) error {
		if extractor == nil {
			return errors.New("extractor cannot be nil")
		}
		c.extractor = extractor
		return nil
	}
}

// New creates a Crawler. A nil config uses DefaultConfig.
func New(config *Config, opts ...Option) (*Crawler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Crawler{
		config:    config,
		fetcher:   newFetcher(nil, config),
		extractor: extract.New(),
		logger:    slog.Default().With("component", "crawler"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Crawl traverses the origin of startURL breadth first and returns up to
// maxPages pages whose extracted text exceeds the configured minimum. A
// maxPages of zero or less uses Config.DefaultMaxPages.
//
// If robots.txt disallows startURL the result is empty and no page is
// fetched. Failures on individual URLs are skipped. An unparsable or
// non-http(s) startURL returns core.ErrInvalidURL. When ctx is done Crawl
// returns ctx.Err(); a traversal shared with other callers keeps running for
// them.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]*extract.Page, error) {
	start, err := core.ParseHTTPURL(startURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = c.config.DefaultMaxPages
	}

	// The traversal may be shared with other callers, so it must not end
	// when this caller goes away.
	detached := context.WithoutCancel(ctx)
	key := normalizeURL(start) + "|" + strconv.Itoa(maxPages)
	results := c.flights.DoChan(key, func() (any, error) {
		return c.crawl(detached, start, maxPages)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Shared {
			c.logger.Debug("joined in-flight crawl", "url", startURL)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]*extract.Page)), nil
	}
}

// traversal is the state of one crawl.
type traversal struct {
	origin   *url.URL
	frontier []string
	queued   map[string]bool
	visited  map[string]bool
}

func (t *traversal) enqueue(link string) {
	u, err := url.Parse(link)
	if err != nil || !sameOrigin(u, t.origin) || skippedExtensions[strings.ToLower(path.Ext(u.Path))] {
		return
	}
	key := normalizeURL(u)
	if t.queued[key] || t.visited[key] {
		return
	}
	t.queued[key] = true
	t.frontier = append(t.frontier, key)
}

func (c *Crawler) crawl(ctx context.Context, start *url.URL, maxPages int) ([]*extract.Page, error) {
	started := time.Now()
	logger := c.logger.With("start", start.String())
	robots := newRobots(c.config, c.fetcher, c.logger)

	pages := []*extract.Page{}
	if !robots.IsAllowed(ctx, start) {
		logger.Info("start url disallowed by robots.txt")
		return pages, nil
	}

	var limiter *rate.Limiter
	if c.config.RequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.config.RequestInterval), 1)
	}

	t := &traversal{
		origin:  originOf(start),
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
	t.enqueue(start.String())
	if len(t.frontier) == 0 {
		// The start URL itself may carry a skipped extension.
		key := normalizeURL(start)
		t.queued[key] = true
		t.frontier = append(t.frontier, key)
	}

	fetched := 0
	seeded := false
	for len(t.frontier) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := t.frontier[0]
		t.frontier = t.frontier[1:]
		if t.visited[next] {
			continue
		}
		t.visited[next] = true

		target, err := url.Parse(next)
		if err != nil {
			continue
		}
		if seeded && !robots.IsAllowed(ctx, target) {
			logger.Debug("skipping url disallowed by robots.txt", "url", next)
			continue
		}

		fetched++
		page, finalURL, err := c.fetchPage(ctx, limiter, target)
		if finalURL != nil {
			if !seeded && !sameOrigin(finalURL, t.origin) {
				logger.Debug("start url redirected to another origin", "origin", originOf(finalURL).String())
				t.origin = originOf(finalURL)
			}
			final := normalizeURL(finalURL)
			if final != next {
				if t.visited[final] {
					logger.Debug("skipping redirect to visited url", "url", next, "final", final)
					continue
				}
				t.visited[final] = true
			}
		}

		if !seeded {
			seeded = true
			for _, loc := range newSitemap(c.config, c.fetcher, c.logger).DiscoverURLs(ctx, t.origin) {
				t.enqueue(loc)
			}
		}

		if err != nil {
			logger.Debug("skipping url", "url", next, "err", err)
			continue
		}

		if utf8.RuneCountInString(page.Content) > c.config.MinContentChars {
			pages = append(pages, page)
		} else {
			logger.Debug("skipping page with too little content", "url", page.URL, "chars", utf8.RuneCountInString(page.Content))
		}

		for _, link := range page.Links {
			t.enqueue(link)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("crawl finished",
		"pages", len(pages),
		"fetched", fetched,
		"elapsed", time.Since(started))
	return pages, nil
}

// fetchPage fetches and extracts one page. The final URL after redirects is
// returned whenever a response was received, even if the page is skipped.
func (c *Crawler) fetchPage(ctx context.Context, limiter *rate.Limiter, target *url.URL) (*extract.Page, *url.URL, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	resp, err := c.fetcher.get(ctx, target, c.config.PageTimeout)
	if resp == nil {
		return nil, nil, err
	}
	if err != nil {
		return nil, resp.finalURL, err
	}
	if !isHTML(resp.contentType) {
		return nil, resp.finalURL, fmt.Errorf("%w: %q", errNotHTML, resp.contentType)
	}

	page, err := c.extractor.Extract(resp.body, resp.finalURL)
	if err != nil {
		return nil, resp.finalURL, err
	}
	return page, resp.finalURL, nil
}
