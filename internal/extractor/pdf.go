package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/docx"
	"github.com/tsawler/tabula/format"
	"github.com/tsawler/tabula/odt"
	"github.com/tsawler/tabula/pptx"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/xlsx"
	"go.uber.org/zap"

	"medrag/internal/domain"
)

// pageSource is an opened paginated document.
type pageSource interface {
	PageCount() (int, error)
	PageText(index int) (string, error)
	Close() error
}

// textSource is an opened document read as a single block of text.
type textSource interface {
	Text() (string, error)
	Close() error
}

func (e *Extractor) extractPDF(ctx context.Context, name string, data []byte) (Result, error) {
	src, err := openPages(e.openPDF, data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}
	defer src.Close()

	count, err := pageCount(src)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", name, domain.ErrUnreadableDocument, err)
	}

	res := Result{Format: FormatPDF, Pages: count}
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", name, err)
		}
		text, err := readPage(src, i)
		if err != nil {
			res.Failures = append(res.Failures, PageError{Page: i + 1, Err: err})
			e.logger.Warn("page extraction failed",
				zap.String("document", name),
				zap.Int("page", i+1),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	res.Text = strings.Join(parts, "\n")
	return res, nil
}

func openPages(open func([]byte) (pageSource, error), data []byte) (src pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return open(data)
}

func pageCount(src pageSource) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return src.PageCount()
}

// readPage isolates parser panics to the page that caused them.
func readPage(src pageSource, index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return src.PageText(index)
}

type tabulaPDF struct {
	file *os.File
	r    *reader.Reader
}

func openTabulaPDF(data []byte) (pageSource, error) {
	f, err := spool(data, ".pdf")
	if err != nil {
		return nil, err
	}
	r, err := reader.NewReader(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &tabulaPDF{file: f, r: r}, nil
}

func (p *tabulaPDF) PageCount() (int, error) {
	return p.r.PageCount()
}

func (p *tabulaPDF) PageText(index int) (string, error) {
	text, _, err := tabula.FromReader(p.r).Pages(index + 1).Text()
	return text, err
}

func (p *tabulaPDF) Close() error {
	err := p.r.Close()
	if rmErr := os.Remove(p.file.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// tempDocument removes its spool file on Close.
type tempDocument struct {
	textSource
	path string
}

func (d tempDocument) Close() error {
	err := d.textSource.Close()
	os.Remove(d.path)
	return err
}

func openTabulaDocument(data []byte, f format.Format) (textSource, error) {
	tmp, err := spool(data, f.Extension())
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()

	var doc textSource
	switch f {
	case format.DOCX:
		doc, err = docx.Open(path)
	case format.ODT:
		doc, err = odt.Open(path)
	case format.PPTX:
		doc, err = pptx.Open(path)
	case format.XLSX:
		doc, err = xlsx.Open(path)
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, f)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return tempDocument{textSource: doc, path: path}, nil
}

// spool writes data to a temporary file; tabula readers work on files.
func spool(data []byte, ext string) (*os.File, error) {
	f, err := os.CreateTemp("", "medrag-*"+ext)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}
