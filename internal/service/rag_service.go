package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"medrag/internal/domain"
	"medrag/internal/extractor"
)

// PageExtractor reads a document and reports page-level failures.
type PageExtractor interface {
	ExtractPages(ctx context.Context, name string, r io.Reader) (extractor.Result, error)
}

// Searcher ranks stored chunks against a query.
type Searcher interface {
	Retrieve(query string, topK int) ([]string, error)
	Search(query string, topK int) ([]domain.SearchResult, error)
}

// Options tunes ingestion.
type Options struct {
	SummaryMaxSentences int
}

// IngestReport describes the outcome of ingesting one document.
type IngestReport struct {
	DocumentID   string
	Source       string
	Chunks       int
	PageFailures []extractor.PageError
	Summary      string
	Skipped      bool
}

// RAGService is the per-session handle over extraction, chunking, the
// document store and retrieval. It is not safe for concurrent use.
type RAGService struct {
	extractor  PageExtractor
	chunker    domain.Chunker
	store      domain.DocumentStore
	retriever  Searcher
	summarizer domain.Summarizer
	opts       Options
	logger     *zap.Logger
}

func NewRAGService(
	extractor PageExtractor,
	chunker domain.Chunker,
	store domain.DocumentStore,
	retriever Searcher,
	summarizer domain.Summarizer,
	opts Options,
	logger *zap.Logger,
) *RAGService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		extractor:  extractor,
		chunker:    chunker,
		store:      store,
		retriever:  retriever,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

// IngestDocument extracts, chunks and indexes one document. Documents that
// yield no text are reported as skipped and leave the store untouched.
func (s *RAGService) IngestDocument(ctx context.Context, name string, r io.Reader) (IngestReport, error) {
	extracted, err := s.extractor.ExtractPages(ctx, name, r)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("document", name), zap.Error(err))
		return IngestReport{}, err
	}

	doc := domain.Document{ID: hashString(name + "\x00" + extracted.Text), Path: name, Content: extracted.Text}
	report := IngestReport{
		DocumentID:   doc.ID,
		Source:       name,
		PageFailures: extracted.Failures,
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return IngestReport{}, fmt.Errorf("%s: chunk: %w", name, err)
	}
	if len(chunks) == 0 {
		report.Skipped = true
		s.logger.Info("document skipped, no text", zap.String("document", name))
		return report, nil
	}

	if err := s.store.AppendAndRefit(chunks); err != nil {
		return IngestReport{}, fmt.Errorf("%s: index: %w", name, err)
	}
	report.Chunks = len(chunks)

	if s.summarizer != nil && s.opts.SummaryMaxSentences > 0 {
		summary, err := s.summarizer.Summarize(doc.Content, s.opts.SummaryMaxSentences)
		if err != nil {
			s.logger.Warn("summary failed", zap.String("document", name), zap.Error(err))
		}
		report.Summary = summary
	}

	s.logger.Info("document ingested",
		zap.String("document", name),
		zap.String("id", doc.ID),
		zap.Int("chunks", report.Chunks),
		zap.Int("page_failures", len(report.PageFailures)),
		zap.Int("store_size", s.store.Len()),
	)
	return report, nil
}

// IngestDocuments ingests every file matched by paths. Each argument may be a
// glob. A failing file does not prevent the rest from being ingested; all
// failures are returned joined.
func (s *RAGService) IngestDocuments(ctx context.Context, paths []string) ([]IngestReport, error) {
	var (
		reports []IngestReport
		errs    []error
	)
	for _, file := range expand(paths) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := s.ingestFile(ctx, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (s *RAGService) ingestFile(ctx context.Context, path string) (IngestReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestReport{}, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	return s.IngestDocument(ctx, path, f)
}

// Retrieve returns the texts of the topK chunks most similar to query.
func (s *RAGService) Retrieve(query string, topK int) ([]string, error) {
	return s.retriever.Retrieve(query, topK)
}

// Query is Retrieve with chunk provenance and scores.
func (s *RAGService) Query(query string, topK int) ([]domain.SearchResult, error) {
	results, err := s.retriever.Search(query, topK)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query", zap.String("query", query), zap.Int("top_k", topK), zap.Int("results", len(results)))
	return results, nil
}

// IsEmpty reports whether any document has been indexed.
func (s *RAGService) IsEmpty() bool { return s.store.IsEmpty() }

// Len returns the number of indexed chunks.
func (s *RAGService) Len() int { return s.store.Len() }

// Reset drops every indexed document.
func (s *RAGService) Reset() {
	s.store.Reset()
	s.logger.Info("session reset")
}

func expand(paths []string) []string {
	var out []string
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, matches...)
	}
	return out
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
