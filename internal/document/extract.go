package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// supportedExts lists file extensions accepted for ingestion.
var supportedExts = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".pdf":  {},
	".docx": {},
}

func isSupportedExt(ext string) bool {
	_, ok := supportedExts[ext]
	return ok
}

// OCRFunc converts document bytes into text when direct extraction
// finds none.
type OCRFunc func(content []byte) (string, error)

// PDFOCRFallback, when set, runs for PDFs whose text layer is empty
// (scanned documents). Nil means such PDFs surface ErrEmptyDocument.
var PDFOCRFallback OCRFunc

// FromFile reads and extracts the file at path into a Document. The
// title is derived from the file name unless an explicit title is given.
func FromFile(path, title string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading file: %w", err)
	}
	return FromBytes(filepath.Base(path), title, content)
}

// FromBytes extracts a Document from in-memory file content. name must
// carry the original extension; it doubles as the origin.
func FromBytes(name, title string, content []byte) (Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !isSupportedExt(ext) {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
		if err == nil && strings.TrimSpace(text) == "" && PDFOCRFallback != nil {
			text, err = PDFOCRFallback(content)
		}
	case ".docx":
		text, err = extractDOCX(content)
	default:
		text, err = extractPlain(content)
	}
	if err != nil {
		return Document{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	if title == "" {
		title = NormalizeTitle(name)
	}
	return Document{Title: title, Origin: name, Text: text}, nil
}

// extractPlain validates UTF-8 and returns the content unchanged.
// Invalid bytes are replaced rather than rejected so lightly corrupted
// text files still ingest.
func extractPlain(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	return strings.ToValidUTF8(string(content), "�"), nil
}

// extractPDF concatenates the plain text of every page.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting PDF page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// wtTag matches OOXML text runs, tolerating run attributes such as
// xml:space="preserve".
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// paragraphEnd marks paragraph boundaries in the document body.
var paragraphEnd = regexp.MustCompile(`</w:p>`)

// extractDOCX pulls text runs out of word/document.xml inside the DOCX
// zip. Paragraph closes become newlines so the chunker sees paragraph
// structure.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening DOCX: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: word/document.xml not found", ErrUnsupportedFormat)
	}

	body := paragraphEnd.ReplaceAllString(string(docXML), "</w:p>\n")

	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		runs := wtTag.FindAllStringSubmatch(line, -1)
		if len(runs) == 0 {
			continue
		}
		for _, run := range runs {
			b.WriteString(run[1])
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
