// Package memory holds a session's chunks and their TF-IDF vectors in memory.
package memory

import (
	"fmt"

	"go.uber.org/zap"

	"medrag/internal/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// Snapshot is one consistent view of the store: every row of Vectors belongs
// to the chunk at the same index and was produced by Space.
type Snapshot struct {
	Chunks  []domain.Chunk
	Vectors domain.Matrix
	Space   domain.Space
}

// Texts returns the chunk texts in insertion order.
func (s Snapshot) Texts() []string {
	out := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		out[i] = c.Text
	}
	return out
}

// Store is an append-only chunk store. Every append re-fits the vectorizer on
// the whole corpus and re-embeds every chunk, since a new vocabulary changes
// the number and meaning of dimensions.
//
// Store is scoped to one session and performs no locking; callers must not
// use it from more than one goroutine at a time.
type Store struct {
	vectorizer domain.Vectorizer
	snap       *Snapshot
	logger     *zap.Logger
}

// NewStorage creates an empty store that owns vectorizer.
func NewStorage(vectorizer domain.Vectorizer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{vectorizer: vectorizer, logger: logger}
}

// AppendAndRefit appends newChunks and recomputes vectors for all chunks.
// The chunk list, matrix and fitted space are swapped in together; if the fit
// fails the store keeps its previous contents.
func (s *Store) AppendAndRefit(newChunks []domain.Chunk) error {
	if len(newChunks) == 0 {
		return nil
	}
	var prev []domain.Chunk
	if s.snap != nil {
		prev = s.snap.Chunks
	}
	chunks := make([]domain.Chunk, 0, len(prev)+len(newChunks))
	chunks = append(chunks, prev...)
	chunks = append(chunks, newChunks...)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	space, vectors, err := s.vectorizer.FitTransform(texts)
	if err != nil {
		return fmt.Errorf("refit over %d chunks: %w", len(chunks), err)
	}
	if vectors.Len() != len(chunks) {
		return fmt.Errorf("refit returned %d vectors for %d chunks", vectors.Len(), len(chunks))
	}

	s.snap = &Snapshot{Chunks: chunks, Vectors: vectors, Space: space}
	s.logger.Debug("store refit",
		zap.Int("chunks", len(chunks)),
		zap.Int("added", len(newChunks)),
		zap.Int("dimension", vectors.Dim),
		zap.Uint64("generation", vectors.Generation),
	)
	return nil
}

// Snapshot returns the current contents. The zero Snapshot is returned while
// the store is empty.
func (s *Store) Snapshot() Snapshot {
	if s.snap == nil {
		return Snapshot{}
	}
	return *s.snap
}

// Texts returns all chunk texts in insertion order.
func (s *Store) Texts() []string { return s.Snapshot().Texts() }

// IsEmpty reports whether no ingestion has completed yet.
func (s *Store) IsEmpty() bool { return s.snap == nil }

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	if s.snap == nil {
		return 0
	}
	return len(s.snap.Chunks)
}

// Generation returns the vocabulary generation of the stored vectors, 0 when empty.
func (s *Store) Generation() uint64 {
	if s.snap == nil {
		return 0
	}
	return s.snap.Vectors.Generation
}

// Reset drops all chunks, ending the session's document set.
func (s *Store) Reset() {
	s.snap = nil
}
