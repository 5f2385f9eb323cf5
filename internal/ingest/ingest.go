// Package ingest orchestrates the indexing pipeline: normalize a
// source into a document, split it into chunks, embed the chunks, and
// upsert them into the index. Each document lands atomically; a failure
// anywhere in the pipeline leaves the index unchanged for that title.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docent-ai/docent/internal/document"
	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/log"
)

// ErrNoDocuments indicates a site crawl produced nothing ingestable.
var ErrNoDocuments = errors.New("no documents ingested")

// Splitter breaks normalized text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer is the index write surface the service depends on.
type Indexer interface {
	Upsert(ctx context.Context, title, origin string, chunks []index.Chunk) error
	DeleteByTitle(ctx context.Context, title string) (int, error)
	AllMetadata(ctx context.Context) ([]index.DocumentInfo, error)
}

// Fetcher retrieves remote documents.
type Fetcher interface {
	FromURL(ctx context.Context, url string) (document.Document, error)
	Crawl(ctx context.Context, startURL string, opts document.CrawlOptions) ([]document.Document, error)
}

// excerptLimit caps the preview excerpt carried in a Report.
const excerptLimit = 200

// Report summarizes one ingested document.
type Report struct {
	Title   string `json:"title"`
	Origin  string `json:"origin"`
	Chunks  int    `json:"chunks"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Service runs the ingestion pipeline.
type Service struct {
	fetcher  Fetcher
	spool    *document.Spool
	splitter Splitter
	embedder Embedder
	indexer  Indexer
	logger   log.Logger
}

// New creates a Service.
func New(fetcher Fetcher, spool *document.Spool, splitter Splitter, embedder Embedder, indexer Indexer, logger log.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		spool:    spool,
		splitter: splitter,
		embedder: embedder,
		indexer:  indexer,
		logger:   logger,
	}
}

// IngestDocument runs an already-normalized document through the
// pipeline.
func (s *Service) IngestDocument(ctx context.Context, doc document.Document) (Report, error) {
	pieces := s.splitter.Split(doc.Text)
	if len(pieces) == 0 {
		return Report{}, fmt.Errorf("%w: %s", document.ErrEmptyDocument, doc.Title)
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return Report{}, fmt.Errorf("embedding %q: %w", doc.Title, err)
	}

	chunks := make([]index.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = index.Chunk{
			ID:        fmt.Sprintf("%s#%d", doc.Title, i),
			Title:     doc.Title,
			Origin:    doc.Origin,
			Seq:       i,
			Content:   content,
			Embedding: vectors[i],
		}
	}

	if err := s.indexer.Upsert(ctx, doc.Title, doc.Origin, chunks); err != nil {
		return Report{}, fmt.Errorf("indexing %q: %w", doc.Title, err)
	}

	return Report{
		Title:   doc.Title,
		Origin:  doc.Origin,
		Chunks:  len(chunks),
		Excerpt: excerpt(pieces[0]),
	}, nil
}

// excerpt truncates text to a preview-sized rune prefix.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "…"
}

// IngestUpload buffers an uploaded file in the spool, extracts it, and
// ingests the result. title may be empty to derive from the file name.
func (s *Service) IngestUpload(ctx context.Context, filename, title string, r io.Reader) (Report, error) {
	path, cleanup, err := s.spool.Put(filename, r)
	if err != nil {
		return Report{}, fmt.Errorf("spooling upload: %w", err)
	}
	defer cleanup()

	doc, err := document.FromFile(path, title)
	if err != nil {
		return Report{}, err
	}
	doc.Origin = filename

	return s.IngestDocument(ctx, doc)
}

// IngestFile extracts a file already on disk and ingests it.
func (s *Service) IngestFile(ctx context.Context, path, title string) (Report, error) {
	doc, err := document.FromFile(path, title)
	if err != nil {
		return Report{}, err
	}
	return s.IngestDocument(ctx, doc)
}

// IngestURL fetches a single page and ingests it. title may be empty
// to derive from the page itself.
func (s *Service) IngestURL(ctx context.Context, url, title string) (Report, error) {
	doc, err := s.fetcher.FromURL(ctx, url)
	if err != nil {
		return Report{}, err
	}
	if title != "" {
		doc.Title = document.NormalizeTitle(title)
	}
	return s.IngestDocument(ctx, doc)
}

// IngestSite crawls a site and ingests every page. Pages that fail to
// ingest are skipped with a warning; the crawl fails only if nothing at
// all could be ingested.
func (s *Service) IngestSite(ctx context.Context, startURL string, opts document.CrawlOptions) ([]Report, error) {
	docs, err := s.fetcher.Crawl(ctx, startURL, opts)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, doc := range docs {
		report, err := s.IngestDocument(ctx, doc)
		if err != nil {
			s.logger.Warn("skipping page", "title", doc.Title, "origin", doc.Origin, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, startURL)
	}

	s.logger.Info("site ingested", "start_url", startURL, "documents", len(reports))
	return reports, nil
}

// Delete removes a document from the index. The title is normalized
// the same way ingestion normalizes it, so "Doc1.txt" deletes the
// document indexed as "Doc1". Returns the number of chunks removed.
func (s *Service) Delete(ctx context.Context, title string) (int, error) {
	return s.indexer.DeleteByTitle(ctx, document.NormalizeTitle(title))
}

// List returns metadata for every indexed document.
func (s *Service) List(ctx context.Context) ([]index.DocumentInfo, error) {
	return s.indexer.AllMetadata(ctx)
}
