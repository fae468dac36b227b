package domain

import (
	"context"
	"io"
)

// Document represents a single source document handed to ingestion.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a contiguous window of a document's normalized text.
type Chunk struct {
	DocumentID string
	Source     string
	Index      int
	Text       string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Matrix is a dense set of row vectors produced by one vocabulary generation.
type Matrix struct {
	Generation uint64
	Dim        int
	Rows       [][]float32
}

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// Extractor pulls the plain text out of a document byte stream.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Space is a fitted, immutable vector space. Vectors from the same Space are
// always comparable with each other.
type Space interface {
	Generation() uint64
	Dimension() int
	Transform(texts []string) (Matrix, error)
}

// Vectorizer builds vector spaces from a corpus.
// FitTransform replaces the vocabulary entirely; Transform projects onto the
// most recently fitted vocabulary without changing it.
type Vectorizer interface {
	FitTransform(texts []string) (Space, Matrix, error)
	Transform(texts []string) (Matrix, error)
	Generation() uint64
}

// DocumentStore holds all ingested chunks and their vectors for one session.
type DocumentStore interface {
	AppendAndRefit(newChunks []Chunk) error
	Texts() []string
	IsEmpty() bool
	Len() int
	Reset()
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
