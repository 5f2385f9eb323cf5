package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/log"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Widget Maintenance Guide</title></head>
<body>
<article>
<h1>Widget Maintenance Guide</h1>
<p>Widgets require quarterly lubrication to stay within tolerance. Use the
approved lubricant listed in the parts catalog and apply it to every
bearing surface before reassembly.</p>
<p>After lubrication, run the calibration cycle twice and record the
results in the maintenance log. A drift of more than two percent means
the widget must be taken out of service.</p>
</article>
<script>console.log("ignored")</script>
</body>
</html>`

func TestFromHTML_ExtractsArticle(t *testing.T) {
	f := NewFetcher(log.NewNop())

	doc, err := f.fromHTML("https://example.com/guides/widgets", []byte(articleHTML))
	if err != nil {
		t.Fatalf("fromHTML() = %v", err)
	}
	if doc.Title != "Widget Maintenance Guide" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Origin != "https://example.com/guides/widgets" {
		t.Errorf("Origin = %q", doc.Origin)
	}
	if !strings.Contains(doc.Text, "quarterly lubrication") {
		t.Errorf("Text missing article content: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "console.log") {
		t.Errorf("Text contains script content: %q", doc.Text)
	}
}

func TestFromHTML_FallbackFlatten(t *testing.T) {
	f := NewFetcher(log.NewNop())

	// Not article-shaped: bare fragments readability gives up on.
	page := `<html><head><title>Port Reference</title></head><body>
<table><tr><td>8080</td><td>HTTP API</td></tr></table>
</body></html>`

	doc, err := f.fromHTML("https://example.com/ports", []byte(page))
	if err != nil {
		t.Fatalf("fromHTML() = %v", err)
	}
	if !strings.Contains(doc.Text, "8080") || !strings.Contains(doc.Text, "HTTP API") {
		t.Errorf("Text = %q, want table content", doc.Text)
	}
}

func TestFromHTML_EmptyPage(t *testing.T) {
	f := NewFetcher(log.NewNop())

	_, err := f.fromHTML("https://example.com/blank", []byte("<html><body></body></html>"))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("fromHTML() = %v, want ErrEmptyDocument", err)
	}
}

func TestFromURL_RejectsPrivateTargets(t *testing.T) {
	f := NewFetcher(log.NewNop())

	for _, url := range []string{
		"http://127.0.0.1:8080/secrets",
		"http://169.254.169.254/latest/meta-data/",
		"file:///etc/passwd",
	} {
		if _, err := f.FromURL(context.Background(), url); !errors.Is(err, ErrFetch) {
			t.Errorf("FromURL(%q) = %v, want ErrFetch", url, err)
		}
	}
}

func TestFlattenHTML_SkipsScriptAndStyle(t *testing.T) {
	text := flattenHTML([]byte(`<html><body>
<style>.x{color:red}</style>
<p>visible</p>
<script>hidden()</script>
</body></html>`))

	if !strings.Contains(text, "visible") {
		t.Errorf("flattenHTML() = %q, want visible text", text)
	}
	if strings.Contains(text, "hidden") || strings.Contains(text, "color:red") {
		t.Errorf("flattenHTML() = %q, leaked script/style", text)
	}
}

func TestHTMLTitle(t *testing.T) {
	title := htmlTitle([]byte(`<html><head><title>  Docs Home </title></head><body/></html>`))
	if title != "Docs Home" {
		t.Errorf("htmlTitle() = %q, want %q", title, "Docs Home")
	}
}
