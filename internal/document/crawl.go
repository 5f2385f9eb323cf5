package document

import (
	"context"
	"fmt"
	nurl "net/url"
	"sync"

	"github.com/gocolly/colly/v2"
)

// CrawlOptions bounds a site crawl.
type CrawlOptions struct {
	// MaxDepth limits how many links deep the crawl follows from the
	// start page. 0 means the start page only.
	MaxDepth int

	// MaxPages caps the total number of pages converted to documents.
	MaxPages int
}

// DefaultCrawlOptions keeps site ingestion bounded.
var DefaultCrawlOptions = CrawlOptions{MaxDepth: 2, MaxPages: 50}

// Crawl walks a site starting at startURL, staying on the start host,
// and converts each fetched page into a Document. Pages that yield no
// text are skipped, not fatal.
func (f *Fetcher) Crawl(ctx context.Context, startURL string, opts CrawlOptions) ([]Document, error) {
	if err := f.validator.Validate(startURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	start, err := nurl.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultCrawlOptions.MaxPages
	}

	c := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(opts.MaxDepth+1), // colly counts the start page as depth 1
		colly.UserAgent("docent/1.0"),
		colly.StdlibContext(ctx),
	)
	c.WithTransport(f.validator.Transport())

	var (
		mu   sync.Mutex
		docs []Document
	)

	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		if len(docs) >= opts.MaxPages {
			return
		}
		doc, err := f.fromHTML(r.Request.URL.String(), r.Body)
		if err != nil {
			f.logger.Warn("skipping page", "url", r.Request.URL, "error", err)
			return
		}
		docs = append(docs, doc)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := len(docs) >= opts.MaxPages
		mu.Unlock()
		if full {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || f.validator.Validate(link) != nil {
			return
		}
		// Visit errors (already seen, off-domain, depth) are expected.
		_ = e.Request.Visit(link)
	})

	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn("crawl request failed", "url", r.Request.URL, "error", err)
	})

	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	c.Wait()

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: crawl of %s yielded no documents", ErrEmptyDocument, startURL)
	}

	f.logger.Info("crawl complete", "start_url", startURL, "pages", len(docs))
	return docs, nil
}
