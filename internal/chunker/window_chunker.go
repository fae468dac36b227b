package chunker

import (
	"fmt"
	"strings"

	"medrag/internal/domain"
)

const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 200
)

// WindowChunker splits text into fixed-size character windows where each
// window shares exactly overlap characters with the previous one.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// NewWindowChunker validates the window parameters. Sizes are counted in
// runes, so multi-byte characters are never split.
func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, chunkSize, overlap)
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the maximum window length.
func (c *WindowChunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive windows.
func (c *WindowChunker) Overlap() int { return c.overlap }

// Split returns the ordered window texts for raw document text.
func (c *WindowChunker) Split(text string) []string {
	runes := []rune(Normalize(text))
	n := len(runes)
	if n == 0 {
		return nil
	}
	var out []string
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end > n {
			end = n
		}
		out = append(out, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}
	return out
}

// Chunk splits a document and tags every window with its origin.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts := c.Split(document.Content)
	if len(texts) == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: document.ID,
			Source:     document.Path,
			Index:      i,
			Text:       t,
		}
	}
	return chunks, nil
}

// Normalize collapses newlines to spaces and trims surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}
