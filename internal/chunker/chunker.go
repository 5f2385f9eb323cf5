// Package chunker splits normalized document text into overlapping chunks
// sized for embedding.
//
// Splitting is recursive: paragraphs first, then lines, then sentences,
// then words. Pieces are merged greedily up to the chunk size with a
// trailing overlap carried into the next chunk so context is preserved
// across chunk boundaries. Text with no usable separator falls back to a
// fixed-size sliding window.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// separators is ordered from coarsest to finest. The empty string is the
// terminal fallback that triggers window splitting.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text using a fixed size and overlap policy.
// Sizes are measured in runes, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. size must be positive and overlap must be
// non-negative and smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split breaks text into chunks. Whitespace-only input yields no chunks.
// Every returned chunk is non-empty and trimmed.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	raw := c.split(text, separators)

	chunks := make([]string, 0, len(raw))
	for _, chunk := range raw {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func (c *Chunker) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= c.size {
		return []string{text}
	}

	// Pick the coarsest separator that actually occurs in the text.
	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return c.window(text)
	}

	return c.merge(splitKeep(text, sep), rest)
}

// merge packs pieces into chunks of at most size runes, carrying a
// trailing overlap of whole pieces into the next chunk. Pieces that are
// themselves oversized recurse with the finer separators.
func (c *Chunker) merge(pieces, finer []string) []string {
	var chunks []string
	var cur []string
	curLen := 0

	flush := func() {
		if curLen == 0 {
			return
		}
		chunks = append(chunks, strings.Join(cur, ""))

		// Carry trailing pieces totalling at most overlap runes.
		keep := len(cur)
		kept := 0
		for keep > 0 {
			n := utf8.RuneCountInString(cur[keep-1])
			if kept+n > c.overlap {
				break
			}
			kept += n
			keep--
		}
		cur = append([]string(nil), cur[keep:]...)
		curLen = kept
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if n > c.size {
			flush()
			cur, curLen = nil, 0
			chunks = append(chunks, c.split(p, finer)...)
			continue
		}
		if curLen+n > c.size {
			flush()
			// The carried overlap plus the next piece can still exceed
			// size; shed carry pieces from the front until it fits.
			for len(cur) > 0 && curLen+n > c.size {
				curLen -= utf8.RuneCountInString(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		curLen += n
	}
	if curLen > 0 {
		chunks = append(chunks, strings.Join(cur, ""))
	}
	return chunks
}

// window slides a fixed-size rune window across text with overlap.
// Used only when no separator at all is available.
func (c *Chunker) window(text string) []string {
	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// splitKeep splits text on sep, keeping the separator attached to the
// preceding piece so no characters are lost when pieces are rejoined.
func splitKeep(text, sep string) []string {
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
