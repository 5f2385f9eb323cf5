package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"handbook.pdf", "handbook"},
		{"notes.txt", "notes"},
		{"/tmp/uploads/policy.docx", "policy"},
		{"  spaced   name.md ", "spaced name"},
		{"no-extension", "no-extension"},
		{"archive.tar.gz", "archive.tar.gz"}, // unknown extension kept
		{"", "untitled"},
		{"...", "untitled"},
	}

	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromBytes_PlainText(t *testing.T) {
	doc, err := FromBytes("notes.txt", "", []byte("  line one\n\nline two  "))
	if err != nil {
		t.Fatalf("FromBytes() = %v", err)
	}
	if doc.Title != "notes" {
		t.Errorf("Title = %q, want %q", doc.Title, "notes")
	}
	if doc.Origin != "notes.txt" {
		t.Errorf("Origin = %q, want %q", doc.Origin, "notes.txt")
	}
	if doc.Text != "line one\n\nline two" {
		t.Errorf("Text = %q", doc.Text)
	}
}

func TestFromBytes_ExplicitTitleWins(t *testing.T) {
	doc, err := FromBytes("notes.txt", "Q3 Handbook", []byte("content"))
	if err != nil {
		t.Fatalf("FromBytes() = %v", err)
	}
	if doc.Title != "Q3 Handbook" {
		t.Errorf("Title = %q, want explicit title", doc.Title)
	}
}

func TestFromBytes_UnsupportedFormat(t *testing.T) {
	_, err := FromBytes("image.png", "", []byte{0x89, 0x50})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("FromBytes() = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFromBytes_EmptyDocument(t *testing.T) {
	_, err := FromBytes("blank.txt", "", []byte("   \n\t  "))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("FromBytes() = %v, want ErrEmptyDocument", err)
	}
}

func TestFromBytes_InvalidUTF8Replaced(t *testing.T) {
	doc, err := FromBytes("raw.txt", "", []byte{'o', 'k', 0xff, 'g', 'o'})
	if err != nil {
		t.Fatalf("FromBytes() = %v", err)
	}
	if !strings.Contains(doc.Text, "ok") || !strings.Contains(doc.Text, "go") {
		t.Errorf("Text = %q, want valid text preserved", doc.Text)
	}
}

// buildDOCX assembles a minimal OOXML package with the given paragraphs.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var runs strings.Builder
	for _, p := range paragraphs {
		runs.WriteString(`<w:p w:rsidR="00AA11BB"><w:r><w:t xml:space="preserve">`)
		runs.WriteString(p)
		runs.WriteString(`</w:t></w:r></w:p>`)
	}
	docXML := `<?xml version="1.0"?><w:document><w:body>` + runs.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(docXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromBytes_DOCX(t *testing.T) {
	content := buildDOCX(t, "First paragraph.", "Second paragraph.")

	doc, err := FromBytes("report.docx", "", content)
	if err != nil {
		t.Fatalf("FromBytes() = %v", err)
	}
	if doc.Title != "report" {
		t.Errorf("Title = %q, want %q", doc.Title, "report")
	}
	// Paragraph boundaries survive as newlines.
	want := "First paragraph.\nSecond paragraph."
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
}

func TestFromBytes_DOCXNotAZip(t *testing.T) {
	_, err := FromBytes("broken.docx", "", []byte("this is not a zip archive"))
	if err == nil {
		t.Fatal("FromBytes() = nil, want error for corrupt DOCX")
	}
}

func TestFromBytes_DOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/other.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("<w:document/>")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = FromBytes("odd.docx", "", buf.Bytes())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("FromBytes() = %v, want ErrUnsupportedFormat", err)
	}
}
