package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/domain"
)

func reconstruct(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		r := []rune(c)
		b.WriteString(string(r[overlap:]))
	}
	return b.String()
}

func TestNewWindowChunker_RejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name      string
		size, ovl int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equal to size", 10, 10},
		{"overlap larger than size", 10, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWindowChunker(tc.size, tc.ovl)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := NewWindowChunker(DefaultChunkSize, DefaultOverlap)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split(" \n\n  "))
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	c, err := NewWindowChunker(50, 10)
	require.NoError(t, err)

	got := c.Split("  Anemia is a lack of\nhealthy red blood cells.\n")
	require.Len(t, got, 1)
	assert.Equal(t, "Anemia is a lack of healthy red blood cells.", got[0])

	exact := strings.Repeat("a", 50)
	got = c.Split(exact)
	require.Len(t, got, 1)
	assert.Equal(t, exact, got[0])
}

func TestSplit_DiabetesScenario(t *testing.T) {
	c, err := NewWindowChunker(40, 10)
	require.NoError(t, err)

	text := "Diabetes is a chronic disease. Diabetes affects blood sugar levels."
	got := c.Split(text)
	require.Len(t, got, 2)
	assert.Equal(t, "Diabetes is a chronic disease. Diabetes ", got[0])
	assert.Equal(t, " Diabetes affects blood sugar levels.", got[1])
	assert.Contains(t, got[1], "blood sugar levels")
}

func TestSplit_ConsecutiveChunksShareOverlap(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	for _, p := range []struct{ size, overlap int }{{40, 10}, {100, 0}, {1200, 200}, {7, 6}, {64, 1}} {
		c, err := NewWindowChunker(p.size, p.overlap)
		require.NoError(t, err)

		chunks := c.Split(text)
		require.NotEmpty(t, chunks)
		for i := 0; i+1 < len(chunks); i++ {
			cur, next := []rune(chunks[i]), []rune(chunks[i+1])
			require.Len(t, cur, p.size, "every chunk but the last is full size")
			assert.Equal(t, string(cur[len(cur)-p.overlap:]), string(next[:p.overlap]))
		}
		last := []rune(chunks[len(chunks)-1])
		assert.LessOrEqual(t, len(last), p.size)
		assert.Equal(t, Normalize(text), reconstruct(chunks, p.overlap))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := NewWindowChunker(30, 5)
	require.NoError(t, err)
	text := "Hypertension is high blood pressure.\nIt often has no symptoms."
	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	c, err := NewWindowChunker(4, 1)
	require.NoError(t, err)

	got := c.Split("éléphant")
	require.Equal(t, []string{"élép", "phan", "nt"}, got)
}

func TestChunk_TagsOrigin(t *testing.T) {
	c, err := NewWindowChunker(40, 10)
	require.NoError(t, err)

	doc := domain.Document{ID: "doc1", Path: "notes.pdf", Content: "Diabetes is a chronic disease. Diabetes affects blood sugar levels."}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for i, ch := range chunks {
		assert.Equal(t, "doc1", ch.DocumentID)
		assert.Equal(t, "notes.pdf", ch.Source)
		assert.Equal(t, i, ch.Index)
	}

	empty, err := c.Chunk(domain.Document{ID: "x"})
	require.NoError(t, err)
	assert.Nil(t, empty)
}
