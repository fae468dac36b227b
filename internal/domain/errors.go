package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrInvalidInput indicates a caller supplied an out-of-range parameter
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFitted indicates Transform was called before any fit
	ErrNotFitted = errors.New("vectorizer not fitted")

	// ErrEmptyVocabulary indicates the corpus produced no usable terms
	ErrEmptyVocabulary = errors.New("empty vocabulary")

	// ErrUnreadableDocument indicates the whole document could not be parsed
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrUnsupportedFormat indicates no extractor handles the document format
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrGenerationMismatch indicates vectors from two different fits were compared
	ErrGenerationMismatch = errors.New("vocabulary generation mismatch")
)
