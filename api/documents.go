package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/docent-ai/docent/internal/document"
	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/log"
)

// maxUploadSize bounds multipart uploads (32 MB).
const maxUploadSize = 32 << 20

// Ingester is the ingestion surface the document handlers depend on.
type Ingester interface {
	IngestUpload(ctx context.Context, filename, title string, r io.Reader) (ingest.Report, error)
	IngestURL(ctx context.Context, url, title string) (ingest.Report, error)
	IngestSite(ctx context.Context, startURL string, opts document.CrawlOptions) ([]ingest.Report, error)
	Delete(ctx context.Context, title string) (int, error)
	List(ctx context.Context) ([]index.DocumentInfo, error)
}

// DocumentHandler handles document ingestion and management endpoints.
type DocumentHandler struct {
	ingester Ingester
	logger   log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(ingester Ingester, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{ingester: ingester, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("POST /api/documents/upload", h.upload)
	mux.HandleFunc("POST /api/documents/url", h.fromURL)
	mux.HandleFunc("POST /api/documents/site", h.fromSite)
	mux.HandleFunc("DELETE /api/documents/{title}", h.delete)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.ingester.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}

// upload ingests a multipart file. Form fields:
//   - file: the document (required)
//   - title: index title override (optional, derived from file name otherwise)
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "file field is required")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Warn("closing upload", "error", err)
		}
	}()

	report, err := h.ingester.IngestUpload(r.Context(), header.Filename, r.FormValue("title"), file)
	if err != nil {
		h.logger.Error("failed to ingest upload", "filename", header.Filename, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// IngestURLRequest is the request body for ingesting a single page.
type IngestURLRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (h *DocumentHandler) fromURL(w http.ResponseWriter, r *http.Request) {
	var req IngestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "validation", "url is required")
		return
	}

	report, err := h.ingester.IngestURL(r.Context(), req.URL, req.Title)
	if err != nil {
		h.logger.Error("failed to ingest url", "url", req.URL, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// IngestSiteRequest is the request body for crawling a site.
type IngestSiteRequest struct {
	URL      string `json:"url"`
	MaxDepth int    `json:"max_depth"`
	MaxPages int    `json:"max_pages"`
}

func (h *DocumentHandler) fromSite(w http.ResponseWriter, r *http.Request) {
	var req IngestSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "validation", "url is required")
		return
	}

	opts := document.DefaultCrawlOptions
	if req.MaxDepth > 0 {
		opts.MaxDepth = req.MaxDepth
	}
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}

	reports, err := h.ingester.IngestSite(r.Context(), req.URL, opts)
	if err != nil {
		h.logger.Error("failed to ingest site", "url", req.URL, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"documents": reports,
		"total":     len(reports),
	})
}

func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "validation", "title is required")
		return
	}

	removed, err := h.ingester.Delete(r.Context(), title)
	if err != nil {
		// Chunks are already gone when only the metadata delete failed;
		// the client sees a partial status rather than a clean failure.
		if errors.Is(err, index.ErrPartialDelete) {
			writeJSON(w, http.StatusMultiStatus, map[string]any{
				"deleted": title,
				"chunks":  removed,
				"error":   "partial_delete",
				"message": err.Error(),
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": title, "chunks": removed})
}
