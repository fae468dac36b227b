package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/assistant"
	"medrag/internal/domain"
	"medrag/internal/llm"
	"medrag/internal/service"
)

type fakeSession struct {
	chunks   int
	ingested []string
	resets   int
	results  []domain.SearchResult
	topK     int
	lenCalls int
}

func (f *fakeSession) IngestDocuments(_ context.Context, paths []string) ([]service.IngestReport, error) {
	f.ingested = append(f.ingested, paths...)
	f.chunks += 2
	return []service.IngestReport{{Source: paths[0], Chunks: 2, Summary: "Short summary."}}, errors.New("missing.pdf: no such file")
}

func (f *fakeSession) Query(_ string, topK int) ([]domain.SearchResult, error) {
	f.topK = topK
	return f.results, nil
}

func (f *fakeSession) Len() int {
	f.lenCalls++
	return f.chunks
}

func (f *fakeSession) Reset() {
	f.resets++
	f.chunks = 0
}

type fakeResponder struct {
	history []llm.Message
	opts    assistant.Options
	reply   assistant.Reply
	err     error
}

func (f *fakeResponder) Reply(_ context.Context, history []llm.Message, opts assistant.Options) (assistant.Reply, error) {
	f.history, f.opts = history, opts
	return f.reply, f.err
}

func newModel(s *fakeSession, r *fakeResponder) Model {
	m := New(context.Background(), s, r, assistant.Options{Mode: assistant.Concise, UseRAG: true, TopK: 5}, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func enter(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("  /ADD a.pdf  b.pdf ")
	require.True(t, ok)
	assert.Equal(t, Command{Name: "add", Args: []string{"a.pdf", "b.pdf"}}, cmd)

	_, ok = ParseCommand("what is /add?")
	assert.False(t, ok)
	_, ok = ParseCommand("/")
	assert.False(t, ok)
}

func TestParseToggle(t *testing.T) {
	on, err := parseToggle([]string{"ON"})
	require.NoError(t, err)
	assert.True(t, on)
	on, err = parseToggle([]string{"off"})
	require.NoError(t, err)
	assert.False(t, on)
	_, err = parseToggle(nil)
	assert.Error(t, err)
}

func TestSettingsCommands(t *testing.T) {
	m := newModel(&fakeSession{}, &fakeResponder{})

	m, _ = enter(t, m, "/mode detailed")
	assert.Equal(t, assistant.Detailed, m.opts.Mode)
	m, _ = enter(t, m, "/web on")
	assert.True(t, m.opts.UseWeb)
	m, _ = enter(t, m, "/rag off")
	assert.False(t, m.opts.UseRAG)
	m, _ = enter(t, m, "/mode loud")
	assert.Equal(t, "Usage: /mode concise|detailed", m.status)
	m, _ = enter(t, m, "/bogus")
	assert.Contains(t, m.status, "Unknown command /bogus")
}

func TestTemperatureCommand(t *testing.T) {
	r := &fakeResponder{reply: assistant.Reply{Content: "ok"}}
	m := newModel(&fakeSession{}, r)

	m, _ = enter(t, m, "/temperature 0.65")
	assert.InDelta(t, 0.65, m.opts.Temperature, 1e-9)
	assert.Equal(t, "Temperature: 0.65", m.status)
	assert.Contains(t, m.View(), "temp: 0.65")

	for _, bad := range []string{"/temperature 1.5", "/temperature -0.1", "/temperature warm", "/temperature"} {
		m, _ = enter(t, m, bad)
		assert.Equal(t, "Usage: /temperature <0..1>", m.status, bad)
		assert.InDelta(t, 0.65, m.opts.Temperature, 1e-9, bad)
	}

	m, _ = enter(t, m, "/temperature 1")
	m, cmd := enter(t, m, "hello")
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.InDelta(t, 1.0, r.opts.Temperature, 1e-9)
}

func TestParseTemperature(t *testing.T) {
	got, err := parseTemperature([]string{"0"})
	require.NoError(t, err)
	assert.Zero(t, got)
	got, err = parseTemperature([]string{"0.3"})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got, 1e-9)
	_, err = parseTemperature([]string{"1.01"})
	assert.Error(t, err)
	_, err = parseTemperature([]string{"0.1", "0.2"})
	assert.Error(t, err)
}

func TestAskRoundTrip(t *testing.T) {
	r := &fakeResponder{reply: assistant.Reply{Content: "Anemia is a lack of red cells.", Warnings: []string{"Web search failed: timeout"}}}
	m := newModel(&fakeSession{}, r)

	m, cmd := enter(t, m, "What is anemia?")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	m, again := enter(t, m, "another question")
	assert.Nil(t, again)
	assert.Contains(t, m.status, "Busy")
	assert.Len(t, m.history, 1)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	require.Len(t, r.history, 1)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What is anemia?"}, r.history[0])
	assert.Equal(t, assistant.Concise, r.opts.Mode)
	require.Len(t, m.history, 2)
	assert.Equal(t, llm.RoleAssistant, m.history[1].Role)
	assert.Contains(t, m.renderTranscript(), "Anemia is a lack of red cells.")
	assert.Contains(t, m.renderTranscript(), "Web search failed: timeout")
}

func TestAskModelErrorIsRecoverable(t *testing.T) {
	r := &fakeResponder{err: errors.New("401 invalid api key")}
	m := newModel(&fakeSession{}, r)

	m, cmd := enter(t, m, "hello")
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	require.Len(t, m.history, 2)
	assert.Equal(t, llm.RoleAssistant, m.history[1].Role)
	assert.Contains(t, m.history[1].Content, "401 invalid api key")
	assert.Contains(t, m.renderTranscript(), "401 invalid api key")

	r.err = nil
	r.reply = assistant.Reply{Content: "Hello again."}
	m, cmd = enter(t, m, "are you back?")
	m.Update(cmd())
	require.Len(t, r.history, 3)
	assert.Equal(t, []string{llm.RoleUser, llm.RoleAssistant, llm.RoleUser},
		[]string{r.history[0].Role, r.history[1].Role, r.history[2].Role})
}

func TestAddIngestsInBackground(t *testing.T) {
	s := &fakeSession{}
	m := newModel(s, &fakeResponder{})

	m, cmd := enter(t, m, "/add notes.pdf missing.pdf")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, []string{"notes.pdf", "missing.pdf"}, s.ingested)
	out := m.renderTranscript()
	assert.Contains(t, out, "notes.pdf: 2 chunk(s) indexed.")
	assert.Contains(t, out, "Short summary.")
	assert.Contains(t, out, "missing.pdf: no such file")
	assert.Equal(t, "2 chunk(s) indexed.", m.status)
	assert.Contains(t, m.View(), "chunks: 2")
}

func TestViewDoesNotTouchSessionWhileIngesting(t *testing.T) {
	s := &fakeSession{}
	m := newModel(s, &fakeResponder{})

	m, cmd := enter(t, m, "/add notes.pdf")
	require.NotNil(t, cmd)
	s.lenCalls = 0
	assert.Contains(t, m.View(), "chunks: 0")
	msg := cmd()
	assert.Contains(t, m.View(), "chunks: 0")
	assert.Zero(t, s.lenCalls)

	next, _ := m.Update(msg)
	m = next.(Model)
	s.lenCalls = 0
	assert.Contains(t, m.View(), "chunks: 2")
	assert.Zero(t, s.lenCalls)
}

func TestInitialPathsAreIngested(t *testing.T) {
	s := &fakeSession{}
	m := New(context.Background(), s, &fakeResponder{}, assistant.Options{Mode: assistant.Concise}, []string{"a.pdf"})
	assert.True(t, m.busy)
	require.NotNil(t, m.Init())
	msg := m.ingest(m.pending)()
	next, _ := m.Update(msg)
	assert.False(t, next.(Model).busy)
	assert.Equal(t, []string{"a.pdf"}, s.ingested)
}

func TestSearchCommand(t *testing.T) {
	s := &fakeSession{results: []domain.SearchResult{{
		Chunk: domain.Chunk{Source: "diabetes.pdf", Index: 1, Text: "Diabetes is chronic. It affects blood sugar levels."},
		Score: 0.82,
	}}}
	m := newModel(s, &fakeResponder{})

	m, cmd := enter(t, m, "/search blood sugar")
	assert.Nil(t, cmd)
	assert.Equal(t, 5, s.topK)
	out := m.renderTranscript()
	assert.Contains(t, out, "diabetes.pdf #1")
	assert.Contains(t, out, "score=0.820")
	assert.Contains(t, out, "blood sugar levels.")
}

func TestResetClearsSession(t *testing.T) {
	s := &fakeSession{chunks: 4}
	m := newModel(s, &fakeResponder{reply: assistant.Reply{Content: "ok"}})
	assert.Contains(t, m.View(), "chunks: 4")
	m, cmd := enter(t, m, "hi")
	next, _ := m.Update(cmd())
	m = next.(Model)

	m, _ = enter(t, m, "/reset")
	assert.Equal(t, 1, s.resets)
	assert.Empty(t, m.history)
	assert.Equal(t, 0, s.Len())
	assert.Contains(t, m.View(), "chunks: 0")
}

func TestTokenOverlapScore(t *testing.T) {
	q := toTokenSet("Blood sugar")
	assert.Equal(t, 2, tokenOverlapScore(q, "Sugar in the blood, blood again."))
	assert.Equal(t, 0, tokenOverlapScore(q, "Nothing relevant."))
}

func TestHighlightBestSentenceKeepsText(t *testing.T) {
	got := highlightBestSentence("Diabetes is chronic. It affects blood sugar.", "sugar")
	assert.Contains(t, got, "Diabetes is chronic.")
	assert.Contains(t, got, "It affects blood sugar.")
	assert.Equal(t, "plain", highlightBestSentence("plain", ""))
}
