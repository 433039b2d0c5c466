package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// PageMetadata identifies where a piece of text came from
type PageMetadata struct {
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
}

// Page is one page-level text unit produced by the loader
type Page struct {
	Text     string       `json:"text"`
	Metadata PageMetadata `json:"metadata"`
}

// Document is an ordered sequence of pages. Immutable once loaded.
type Document struct {
	Source string `json:"source"`
	Pages  []Page `json:"pages"`
}

// FullText joins all pages with blank lines in page order.
func (d *Document) FullText() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// IsBlank reports whether every page is empty or whitespace-only.
func (d *Document) IsBlank() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// Span is a half-open [Start, End) range of rune offsets within a page
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is the unit of retrieval
type Chunk struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Metadata PageMetadata `json:"metadata"`
	Span     Span         `json:"char_span"`
}

// ChunkID derives a stable identifier so repeated ingestion of the same
// text upserts instead of duplicating.
func ChunkID(meta PageMetadata, span Span, text string) string {
	h := sha256.New()
	h.Write([]byte(meta.Source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(meta.PageNumber)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(span.Start) + ":" + strconv.Itoa(span.End)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Record is a chunk together with its embedding, as held by a vector store
type Record struct {
	Chunk     Chunk
	Embedding []float32
}

// ScoredChunk is a k-NN query hit. Higher Score means more similar.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
