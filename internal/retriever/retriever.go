// Package retriever ranks stored chunks against a query by cosine similarity.
package retriever

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"medrag/internal/domain"
	"medrag/internal/vectorstore/memory"
)

// Epsilon is added to both norms so all-zero vectors score 0 instead of NaN.
const Epsilon = 1e-8

// Source is the read side of a document store.
type Source interface {
	IsEmpty() bool
	Snapshot() memory.Snapshot
}

// Retriever answers top-K similarity queries over a Source.
type Retriever struct {
	source Source
	logger *zap.Logger
}

// New creates a retriever reading from source.
func New(source Source, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{source: source, logger: logger}
}

// Retrieve returns at most topK chunk texts, most similar first.
func (r *Retriever) Retrieve(query string, topK int) ([]string, error) {
	results, err := r.Search(query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = res.Chunk.Text
	}
	return out, nil
}

// Search returns at most topK chunks with their similarity scores, ordered by
// descending score. Equal scores keep insertion order. An empty store yields
// an empty result.
func (r *Retriever) Search(query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	if r.source.IsEmpty() {
		return []domain.SearchResult{}, nil
	}
	snap := r.source.Snapshot()
	if snap.Space == nil || len(snap.Chunks) == 0 {
		return []domain.SearchResult{}, nil
	}

	// The query is projected with the space that produced the stored vectors.
	q, err := snap.Space.Transform([]string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if q.Generation != snap.Vectors.Generation {
		return nil, fmt.Errorf("%w: query %d, store %d", domain.ErrGenerationMismatch, q.Generation, snap.Vectors.Generation)
	}

	scores := Similarities(q.Rows[0], snap.Vectors.Rows)
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: snap.Chunks[j], Score: scores[j]})
	}
	r.logger.Debug("retrieved chunks",
		zap.Int("candidates", len(scores)),
		zap.Int("returned", len(results)),
		zap.Uint64("generation", q.Generation),
	)
	return results, nil
}

// Similarities scores query against every row.
func Similarities(query []float32, rows [][]float32) []float64 {
	qn := norm(query)
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = dot(query, row) / ((qn + Epsilon) * (norm(row) + Epsilon))
	}
	return out
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b []float32) float64 {
	return dot(a, b) / ((norm(a) + Epsilon) * (norm(b) + Epsilon))
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
