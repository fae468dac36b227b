// Package extractor turns uploaded document bytes into plain text.
//
// PDFs are read page by page so that one damaged page costs only its own
// text. Office documents and HTML are read whole. Anything that is valid UTF-8
// is accepted as plain text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tsawler/tabula/format"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"medrag/internal/domain"
)

// Format names reported in Result.Format.
const (
	FormatPDF   = "pdf"
	FormatDOCX  = "docx"
	FormatODT   = "odt"
	FormatPPTX  = "pptx"
	FormatXLSX  = "xlsx"
	FormatHTML  = "html"
	FormatText  = "text"
	FormatEmpty = "empty"
)

// PageError records a single page that could not be read.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error { return e.Err }

// Result is the outcome of extracting one document.
type Result struct {
	Text     string
	Format   string
	Pages    int
	Failures []PageError
}

// Extractor implements domain.Extractor.
type Extractor struct {
	logger   *zap.Logger
	openPDF  func(data []byte) (pageSource, error)
	openDoc  func(data []byte, f format.Format) (textSource, error)
	maxBytes int64
}

// DefaultMaxBytes bounds how much of an upload is read into memory.
const DefaultMaxBytes = 64 << 20

var _ domain.Extractor = (*Extractor)(nil)

// New creates an extractor backed by the tabula document readers.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		logger:   logger,
		openPDF:  openTabulaPDF,
		openDoc:  openTabulaDocument,
		maxBytes: DefaultMaxBytes,
	}
}

// Extract returns the document text. See ExtractPages for the page report.
func (e *Extractor) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	res, err := e.ExtractPages(ctx, name, r)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExtractPages reads the whole document and reports per-page failures.
func (e *Extractor) ExtractPages(ctx context.Context, name string, r io.Reader) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}
	if int64(len(data)) > e.maxBytes {
		return Result{}, fmt.Errorf("%s: %w: larger than %d bytes", name, domain.ErrUnreadableDocument, e.maxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{Format: FormatEmpty}, nil
	}

	detected, err := format.DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}

	var res Result
	switch detected {
	case format.PDF:
		res, err = e.extractPDF(ctx, name, data)
	case format.DOCX, format.ODT, format.PPTX, format.XLSX:
		res, err = e.extractDocument(name, data, detected)
	case format.HTML:
		res, err = extractHTML(name, data)
	default:
		if isHTMLName(name) {
			res, err = extractHTML(name, data)
		} else {
			res, err = extractPlain(name, data)
		}
	}
	if err != nil {
		return Result{}, err
	}

	res.Text = norm.NFC.String(res.Text)
	e.logger.Debug("document extracted",
		zap.String("document", name),
		zap.String("format", res.Format),
		zap.Int("pages", res.Pages),
		zap.Int("page_failures", len(res.Failures)),
		zap.Int("chars", utf8.RuneCountInString(res.Text)),
	)
	return res, nil
}

func (e *Extractor) extractDocument(name string, data []byte, f format.Format) (Result, error) {
	doc, err := e.openDoc(data, f)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}
	defer doc.Close()

	text, err := doc.Text()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}
	return Result{
		Text:   strings.TrimSpace(text),
		Format: strings.ToLower(f.String()),
		Pages:  1,
	}, nil
}

func extractPlain(name string, data []byte) (Result, error) {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return Result{}, fmt.Errorf("%s: %w", name, domain.ErrUnsupportedFormat)
	}
	return Result{Text: string(data), Format: FormatText, Pages: 1}, nil
}

func isHTMLName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}
