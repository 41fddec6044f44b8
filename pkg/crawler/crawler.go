// Package crawler discovers and fetches documentation pages. Discovery
// is sitemap-first with a breadth-first fallback; fetching is bounded by
// an admission gate and per-URL failures are logged and skipped.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/docvector/docvector/pkg/httpclient"
)

const maxPageBytes = 5 * 1024 * 1024

// Options configures a crawl.
type Options struct {
	StartURL string
	MaxPages int
	MaxDepth int
	// AllowedHosts defaults to the start URL's host. Subdomains of an
	// allowed host are admitted too.
	AllowedHosts  []string
	RespectRobots bool
	URLPattern    string
	// Concurrency bounds in-flight HTTP requests
	Concurrency int
	UserAgent   string
	Timeout     time.Duration
}

func (o *Options) SetDefaults() {
	if o.MaxPages == 0 {
		o.MaxPages = 100
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = 3
	}
	if o.Concurrency == 0 {
		o.Concurrency = 5
	}
	if o.UserAgent == "" {
		o.UserAgent = "docvector-bot/1.0"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
}

func (o *Options) Validate() error {
	if o.StartURL == "" {
		return fmt.Errorf("start URL is required")
	}
	if _, err := NormalizeURL(o.StartURL, nil); err != nil {
		return err
	}
	if o.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive, got %d", o.MaxPages)
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	return nil
}

// FetchedPage is one successfully fetched page.
type FetchedPage struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
	Title       string
	Depth       int
}

// Result summarises a finished crawl.
type Result struct {
	PagesFetched int
	PagesFailed  int
	UsedSitemap  bool
}

// PageHandler consumes fetched pages. Handlers are invoked concurrently
// from fetch workers; a handler error is logged and the crawl continues.
type PageHandler func(ctx context.Context, page FetchedPage) error

// Crawler fetches pages from one origin.
type Crawler struct {
	opts   Options
	client *httpclient.Client
	robots *RobotsCache

	fetched atomic.Int64
	failed  atomic.Int64
}

// New creates a crawler. Options are defaulted and validated.
func New(opts Options) (*Crawler, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	client := httpclient.New(
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithUserAgent(opts.UserAgent),
	)

	return &Crawler{
		opts:   opts,
		client: client,
		robots: NewRobotsCache(client, opts.UserAgent),
	}, nil
}

// Crawl discovers and fetches pages, invoking handle for each one.
// Sitemap discovery is tried first; when the sitemap yields no URLs the
// crawler falls back to breadth-first traversal from the start URL.
func (c *Crawler) Crawl(ctx context.Context, handle PageHandler) (*Result, error) {
	startNorm, err := NormalizeURL(c.opts.StartURL, nil)
	if err != nil {
		return nil, err
	}
	start, err := url.Parse(startNorm)
	if err != nil {
		return nil, err
	}

	allowedHosts := c.opts.AllowedHosts
	if len(allowedHosts) == 0 {
		allowedHosts = []string{start.Hostname()}
	}

	if locs := c.fetchSitemap(ctx, start); len(locs) > 0 {
		result := c.crawlSitemap(ctx, locs, allowedHosts, handle)
		return result, nil
	}

	result := c.crawlBFS(ctx, start, startNorm, allowedHosts, handle)
	return result, nil
}

// crawlSitemap fetches sitemap URLs that pass pattern, host, and robots
// checks, capped at MaxPages.
func (c *Crawler) crawlSitemap(ctx context.Context, locs []string, allowedHosts []string, handle PageHandler) *Result {
	seen := make(map[string]bool)
	var candidates []string
	for _, loc := range locs {
		norm, err := NormalizeURL(loc, nil)
		if err != nil {
			continue
		}
		u, err := url.Parse(norm)
		if err != nil || seen[norm] {
			continue
		}
		if !hostAllowed(u.Hostname(), allowedHosts) {
			continue
		}
		if !matchPattern(c.opts.URLPattern, norm) {
			continue
		}
		if c.opts.RespectRobots && !c.robots.Allowed(ctx, norm) {
			continue
		}
		seen[norm] = true
		candidates = append(candidates, norm)
		if len(candidates) >= c.opts.MaxPages {
			break
		}
	}

	slog.Info("crawling from sitemap", "urls", len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, u := range candidates {
		u := u
		g.Go(func() error {
			c.fetchAndHandle(gctx, u, 0, handle)
			return nil
		})
	}
	_ = g.Wait()

	return &Result{
		PagesFetched: int(c.fetched.Load()),
		PagesFailed:  int(c.failed.Load()),
		UsedSitemap:  true,
	}
}

// crawlBFS walks the site level by level from the start URL.
func (c *Crawler) crawlBFS(ctx context.Context, start *url.URL, startNorm string, allowedHosts []string, handle PageHandler) *Result {
	type item struct {
		url   string
		depth int
	}

	seen := map[string]bool{startNorm: true}
	frontier := []item{{url: startNorm, depth: 0}}

	for len(frontier) > 0 && int(c.fetched.Load()) < c.opts.MaxPages {
		var (
			mu   sync.Mutex
			next []item
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.Concurrency)

		for _, it := range frontier {
			if int(c.fetched.Load()) >= c.opts.MaxPages {
				break
			}
			it := it
			g.Go(func() error {
				if int(c.fetched.Load()) >= c.opts.MaxPages {
					return nil
				}
				page := c.fetchAndHandle(gctx, it.url, it.depth, handle)
				if page == nil || it.depth >= c.opts.MaxDepth {
					return nil
				}
				if !strings.Contains(page.ContentType, "html") {
					return nil
				}

				base, err := url.Parse(page.URL)
				if err != nil {
					return nil
				}
				for _, link := range extractLinks(page.Body) {
					norm, err := NormalizeURL(link, base)
					if err != nil {
						continue
					}
					u, err := url.Parse(norm)
					if err != nil {
						continue
					}
					if !hostAllowed(u.Hostname(), allowedHosts) {
						continue
					}
					if !matchPattern(c.opts.URLPattern, norm) {
						continue
					}
					if c.opts.RespectRobots && !c.robots.Allowed(gctx, norm) {
						continue
					}

					mu.Lock()
					if !seen[norm] {
						seen[norm] = true
						next = append(next, item{url: norm, depth: it.depth + 1})
					}
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
		frontier = next
	}

	return &Result{
		PagesFetched: int(c.fetched.Load()),
		PagesFailed:  int(c.failed.Load()),
	}
}

// fetchAndHandle fetches one page and passes it to the handler. Failures
// are counted and swallowed; the crawl continues.
func (c *Crawler) fetchAndHandle(ctx context.Context, rawURL string, depth int, handle PageHandler) *FetchedPage {
	page, err := c.fetch(ctx, rawURL, depth)
	if err != nil {
		c.failed.Add(1)
		slog.Warn("fetch failed", "url", rawURL, "error", err)
		return nil
	}

	if int(c.fetched.Add(1)) > c.opts.MaxPages {
		c.fetched.Add(-1)
		return nil
	}

	if handle != nil {
		if err := handle(ctx, *page); err != nil {
			slog.Warn("page handler failed", "url", rawURL, "error", err)
		}
	}
	return page
}

func (c *Crawler) fetch(ctx context.Context, rawURL string, depth int) (*FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	page := &FetchedPage{
		URL:         rawURL,
		Body:        body,
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		Depth:       depth,
	}
	if strings.Contains(contentType, "html") {
		page.Title = extractHTMLTitle(body)
	}
	return page, nil
}

// extractHTMLTitle returns the contents of the first <title> element.
func extractHTMLTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Title {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

// extractLinks returns all anchor hrefs in the document.
func extractLinks(body []byte) []string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, "href") && a.Val != "" {
					links = append(links, a.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(root)
	return links
}
