// Package chunker splits extracted document text into overlapping
// passages for embedding and retrieval.
//
// Splitting uses a recursive separator cascade: paragraph breaks first,
// then line breaks, sentence-ending punctuation, commas and spaces, and
// only as a last resort a hard character cut. Consecutive chunks overlap
// so context survives chunk boundaries, and the produced chunks tile the
// source text without losing characters.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one bounded contiguous slice of a document's text.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// Index is the chunk's position within the document (0-based).
	Index int

	// Start is the chunk's starting rune offset in the source text.
	Start int

	// Page is the 1-based page the chunk starts on. Pages are delimited
	// by form feeds in the extracted text; without them Page is 1.
	Page int

	// Section is the detected section heading, or "" when none matched.
	Section string

	// DetectedAt is the first detected date/time token, or "".
	DetectedAt string
}

// Config holds chunking parameters. Values come from configuration, not
// constants; 1500/300 are the deployed defaults.
type Config struct {
	Size    int // target maximum chunk length in runes
	Overlap int // desired overlap between consecutive chunks in runes
}

// Chunker splits text into overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap must be non-negative and smaller than
// the chunk size.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, size %d)", cfg.Overlap, cfg.Size)
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// separators is the split cascade, highest priority first. The empty
// string marks the hard character cut.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " "}

// Split splits text into overlapping chunks. Text shorter than one chunk
// yields exactly one chunk; empty text yields none.
//
// Invariants:
//   - chunks tile the source: every rune of text appears in at least one
//     chunk, and consecutive chunks duplicate at most Overlap runes
//   - every chunk is at most Size runes
//   - ordering follows source position
func (c *Chunker) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	pages := pageOffsets(runes)

	if len(runes) <= c.size {
		return []Chunk{c.newChunk(text, 0, 0, pages)}
	}

	var chunks []Chunk
	start := 0
	for {
		remaining := len(runes) - start

		// Final chunk: anchor to the end of the text instead of
		// emitting a runt that would mostly repeat the previous chunk.
		if remaining <= c.size+c.overlap {
			finalStart := start
			if remaining > c.size {
				finalStart = len(runes) - c.size
			}
			chunks = append(chunks, c.newChunk(string(runes[finalStart:]), len(chunks), finalStart, pages))
			return chunks
		}

		end := c.cutPoint(runes, start)
		chunks = append(chunks, c.newChunk(string(runes[start:end]), len(chunks), start, pages))
		start = end - c.overlap
	}
}

// cutPoint returns the end offset for a chunk starting at start. It
// prefers the highest-priority separator found near the size limit and
// falls back to a hard cut at start+size.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	hard := start + c.size

	// Only look back over a bounded window so a separator-free document
	// still degrades to fixed-width cuts rather than tiny chunks.
	window := c.size / 4
	if window > hard-start-c.overlap-1 {
		window = hard - start - c.overlap - 1
	}
	if window <= 0 {
		return hard
	}

	segment := string(runes[hard-window : hard])
	for _, sep := range separators {
		if i := strings.LastIndex(segment, sep); i >= 0 {
			// Keep the separator with the left chunk.
			return hard - window + runeLen(segment[:i+len(sep)])
		}
	}
	return hard
}

func (c *Chunker) newChunk(content string, index, startOffset int, pages []int) Chunk {
	return Chunk{
		Content:    content,
		Index:      index,
		Start:      startOffset,
		Page:       pageAt(pages, startOffset),
		Section:    detectSection(content),
		DetectedAt: detectTimestamp(content),
	}
}

// pageOffsets returns the rune offsets at which a new page begins.
// Form feed is the page separator emitted by the extractor.
func pageOffsets(runes []rune) []int {
	var offsets []int
	for i, r := range runes {
		if r == '\f' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// pageAt maps a rune offset to its 1-based page number.
func pageAt(pageStarts []int, offset int) int {
	page := 1
	for _, s := range pageStarts {
		if offset >= s {
			page++
		}
	}
	return page
}

// runeLen returns the rune count of a string slice taken from a string
// that was itself built from runes, so byte offsets inside it must be
// converted back to rune offsets.
func runeLen(s string) int {
	return len([]rune(s))
}
