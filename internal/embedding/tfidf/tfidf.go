// Package tfidf implements a sparse lexical vector space using
// term-frequency x inverse-document-frequency weighting.
package tfidf

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"medrag/internal/domain"
)

// DefaultMaxFeatures bounds the vocabulary size when none is configured.
const DefaultMaxFeatures = 8192

// Tokens are runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

var (
	_ domain.Vectorizer = (*Vectorizer)(nil)
	_ domain.Space      = (*Space)(nil)
)

// Vectorizer fits TF-IDF vocabularies. Each fit produces a new immutable
// Space with its own generation number; earlier spaces stay valid for the
// vectors they produced.
//
// A Vectorizer is meant to be owned by a single session and is not safe for
// concurrent use.
type Vectorizer struct {
	maxFeatures int
	current     *Space
	generation  uint64
}

// NewVectorizer creates an unfitted vectorizer. maxFeatures <= 0 selects
// DefaultMaxFeatures.
func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Vectorizer{maxFeatures: maxFeatures}
}

// MaxFeatures returns the vocabulary bound.
func (v *Vectorizer) MaxFeatures() int { return v.maxFeatures }

// Generation returns the generation of the current space, 0 before any fit.
func (v *Vectorizer) Generation() uint64 { return v.generation }

// Current returns the most recently fitted space, or nil.
func (v *Vectorizer) Current() *Space { return v.current }

// FitTransform rebuilds the vocabulary from all texts and returns the new
// space together with one row per text. On error the previous space is kept.
func (v *Vectorizer) FitTransform(texts []string) (domain.Space, domain.Matrix, error) {
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	total := make(map[string]int)
	for i, text := range texts {
		tf := termCounts(text)
		counts[i] = tf
		for term, c := range tf {
			df[term]++
			total[term] += c
		}
	}
	if len(df) == 0 {
		return nil, domain.Matrix{}, fmt.Errorf("%w: no terms in %d texts", domain.ErrEmptyVocabulary, len(texts))
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) > v.maxFeatures {
		// Keep the most frequent terms corpus-wide; the stable sort leaves
		// equally frequent terms in lexical order.
		sort.SliceStable(terms, func(i, j int) bool { return total[terms[i]] > total[terms[j]] })
		terms = terms[:v.maxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(texts))
	space := &Space{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
		generation: v.generation + 1,
	}
	for i, term := range terms {
		space.vocabulary[term] = i
		space.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	m := domain.Matrix{Generation: space.generation, Dim: len(terms), Rows: make([][]float32, len(texts))}
	for i, tf := range counts {
		m.Rows[i] = space.vector(tf)
	}

	v.current = space
	v.generation = space.generation
	return space, m, nil
}

// Transform projects texts onto the current vocabulary.
func (v *Vectorizer) Transform(texts []string) (domain.Matrix, error) {
	if v.current == nil {
		return domain.Matrix{}, domain.ErrNotFitted
	}
	return v.current.Transform(texts)
}

// Space is one fitted vocabulary with its idf weights.
type Space struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
	generation uint64
}

// Generation identifies the fit that produced this space.
func (s *Space) Generation() uint64 { return s.generation }

// Dimension returns the dimensionality of the produced vectors.
func (s *Space) Dimension() int { return len(s.terms) }

// Terms returns the vocabulary in index order.
func (s *Space) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Index returns the dimension of a term.
func (s *Space) Index(term string) (int, bool) {
	i, ok := s.vocabulary[term]
	return i, ok
}

// Transform computes one row per text. Out-of-vocabulary terms are dropped;
// a text with no known terms yields an all-zero row.
func (s *Space) Transform(texts []string) (domain.Matrix, error) {
	m := domain.Matrix{Generation: s.generation, Dim: len(s.terms), Rows: make([][]float32, len(texts))}
	for i, text := range texts {
		m.Rows[i] = s.vector(termCounts(text))
	}
	return m, nil
}

func (s *Space) vector(tf map[string]int) []float32 {
	weights := make([]float64, len(s.terms))
	for term, c := range tf {
		if idx, ok := s.vocabulary[term]; ok {
			weights[idx] = float64(c) * s.idf[idx]
		}
	}
	// L2 normalize
	norm := 0.0
	for _, w := range weights {
		norm += w * w
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, len(weights))
	if norm == 0 {
		return vec
	}
	for i, w := range weights {
		vec[i] = float32(w / norm)
	}
	return vec
}

// Tokenize lowercases text and returns its terms in order of appearance.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func termCounts(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		tf[tok]++
	}
	return tf
}
