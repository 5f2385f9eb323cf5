// Package document turns heterogeneous sources (files, URLs, crawled
// sites) into normalized plain-text documents ready for chunking.
package document

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates the file type cannot be extracted.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates extraction produced no usable text.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrFetch indicates a remote document could not be retrieved.
	ErrFetch = errors.New("failed to fetch document")
)

// Document is a normalized unit of ingestable content. Title identifies
// the document in the index; Origin records where it came from (file
// name or URL); Text is plain UTF-8 with original paragraph breaks
// preserved where the format allows.
type Document struct {
	Title  string
	Origin string
	Text   string
}

// NormalizeTitle derives a stable index title from a raw name: the file
// extension is dropped, whitespace is collapsed, and the result is
// trimmed. An empty result falls back to "untitled".
func NormalizeTitle(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if ext := filepath.Ext(base); ext != "" && isSupportedExt(strings.ToLower(ext)) {
		base = strings.TrimSuffix(base, ext)
	}
	title := strings.Join(strings.Fields(base), " ")
	if strings.Trim(title, "./\\") == "" {
		return "untitled"
	}
	return title
}
