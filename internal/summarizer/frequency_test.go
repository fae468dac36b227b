package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	got := Sentences("Diabetes is chronic.  It affects\nglucose! Is it treatable? Yes, with care")
	assert.Equal(t, []string{
		"Diabetes is chronic.",
		"It affects glucose!",
		"Is it treatable?",
		"Yes, with care",
	}, got)
}

func TestSentencesIgnoresPunctuationOnly(t *testing.T) {
	assert.Empty(t, Sentences(" ... !? "))
}

func TestSummarizeDisabled(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize("Anything at all.", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarizeEmpty(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarizePicksFrequentSentencesInOrder(t *testing.T) {
	text := "Insulin regulates glucose. The weather was pleasant yesterday. " +
		"Glucose levels rise after meals and insulin responds. Insulin therapy manages glucose."
	s := NewFrequencySummarizer()

	got, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Insulin regulates glucose. Glucose levels rise after meals and insulin responds.", got)
}

func TestSummarizeReturnsAllWhenFewerSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize("Only one sentence here.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", got)
}
