package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/security"
)

// maxFetchSize caps a single fetched page at 10 MB.
const maxFetchSize = 10 << 20

// Fetcher retrieves remote pages and reduces them to plain text.
// Readability isolates the main article content; pages it cannot parse
// fall back to a whole-document text flatten.
type Fetcher struct {
	client    *http.Client
	validator *security.URLValidator
	logger    log.Logger
}

// NewFetcher creates a Fetcher. All requests go through the validator's
// SSRF-checking transport.
func NewFetcher(logger log.Logger) *Fetcher {
	v := security.NewURLValidator()
	return &Fetcher{
		client: &http.Client{
			Transport:     v.Transport(),
			CheckRedirect: v.CheckRedirect,
			Timeout:       30 * time.Second,
		},
		validator: v,
		logger:    logger,
	}
}

// FromURL fetches a single page and converts it to a Document. The title
// comes from readability metadata, falling back to the <title> element
// and finally the URL itself.
func (f *Fetcher) FromURL(ctx context.Context, rawURL string) (Document, error) {
	if err := f.validator.Validate(rawURL); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "docent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("%w: %s returned status %d", ErrFetch, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading body: %w", ErrFetch, err)
	}

	doc, err := f.fromHTML(rawURL, body)
	if err != nil {
		return Document{}, err
	}

	f.logger.Info("fetched document",
		"url", rawURL, "title", doc.Title, "bytes", len(doc.Text))
	return doc, nil
}

// fromHTML converts raw HTML into a Document.
func (f *Fetcher) fromHTML(rawURL string, body []byte) (Document, error) {
	pageURL, err := nurl.Parse(rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	title := ""
	text := ""

	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		title = article.Title
		text = article.TextContent
	} else {
		// Not article-shaped. Flatten the whole document instead.
		text = flattenHTML(body)
	}

	if title == "" {
		title = htmlTitle(body)
	}
	if title == "" {
		title = rawURL
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, rawURL)
	}

	return Document{
		Title:  NormalizeTitle(title),
		Origin: rawURL,
		Text:   text,
	}, nil
}

// htmlTitle extracts the <title> element via goquery.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// flattenHTML walks the parse tree and joins visible text nodes,
// skipping script and style subtrees. Block elements become line breaks.
func flattenHTML(body []byte) string {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimSpace(b.String())
}
