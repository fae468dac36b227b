package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"medrag/internal/assistant"
	"medrag/internal/domain"
	"medrag/internal/llm"
	"medrag/internal/service"
)

// Session is the TUI-facing subset of the RAG service.
type Session interface {
	IngestDocuments(ctx context.Context, paths []string) ([]service.IngestReport, error)
	Query(query string, topK int) ([]domain.SearchResult, error)
	Len() int
	Reset()
}

// Responder produces assistant turns.
type Responder interface {
	Reply(ctx context.Context, history []llm.Message, opts assistant.Options) (assistant.Reply, error)
}

const disclaimer = "Disclaimer: this assistant provides general educational medical information only. " +
	"It cannot diagnose conditions, prescribe treatment, or replace a licensed doctor."

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryInfo
	entryWarning
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type ingestDoneMsg struct {
	reports []service.IngestReport
	err     error
}

type replyMsg struct {
	reply assistant.Reply
	err   error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	ctx       context.Context
	session   Session
	assistant Responder
	opts      assistant.Options
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	history   []llm.Message
	pending   []string
	status    string
	chunks    int
	busy      bool
	ready     bool
}

// New creates a chat model. Documents in paths are ingested on start.
func New(ctx context.Context, session Session, responder Responder, opts assistant.Options, paths []string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a medical question, or /help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{
		ctx:       ctx,
		session:   session,
		assistant: responder,
		opts:      opts,
		input:     ti,
		viewport:  vp,
		pending:   paths,
		chunks:    session.Len(),
		status:    "Ready. Type /help for commands.",
	}
	m.entries = append(m.entries, entry{kind: entryWarning, text: disclaimer})
	if len(paths) > 0 {
		m.busy = true
		m.status = fmt.Sprintf("Ingesting %d path(s)...", len(paths))
	}
	return m
}

// Init starts the cursor blink and any initial ingestion.
func (m Model) Init() tea.Cmd {
	if len(m.pending) > 0 {
		return tea.Batch(textinput.Blink, m.ingest(m.pending))
	}
	return textinput.Blink
}

// Update handles key, window and background-completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + settings, status, input, spacer
		m.viewport.Width = max(20, msg.Width-transcriptBoxStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case ingestDoneMsg:
		m.busy = false
		m.pending = nil
		for _, r := range msg.reports {
			m.entries = append(m.entries, entry{kind: entryInfo, text: describeReport(r)})
		}
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: "Ingestion failed: " + msg.err.Error()})
		}
		m.chunks = m.session.Len()
		m.status = fmt.Sprintf("%d chunk(s) indexed.", m.chunks)
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		for _, w := range msg.reply.Warnings {
			m.entries = append(m.entries, entry{kind: entryWarning, text: w})
		}
		if msg.err != nil {
			text := "Chat model error: " + msg.err.Error()
			m.history = append(m.history, llm.Message{Role: llm.RoleAssistant, Content: text})
			m.entries = append(m.entries, entry{kind: entryError, text: text})
			m.status = "Reply failed."
		} else {
			m.history = append(m.history, llm.Message{Role: llm.RoleAssistant, Content: msg.reply.Content})
			m.entries = append(m.entries, entry{kind: entryAssistant, text: msg.reply.Content})
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if m.busy {
				m.status = "Busy, wait for the current task to finish."
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	cmd, ok := ParseCommand(line)
	if !ok {
		return m.ask(line)
	}

	switch cmd.Name {
	case "quit", "exit":
		return m, tea.Quit
	case "help":
		m.entries = append(m.entries, entry{kind: entryInfo, text: helpText})
	case "add":
		if len(cmd.Args) == 0 {
			m.status = "Usage: /add <path> [path...]"
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("Ingesting %d path(s)...", len(cmd.Args))
		m.refresh()
		return m, m.ingest(cmd.Args)
	case "search":
		m.search(strings.Join(cmd.Args, " "))
	case "mode":
		mode, err := assistant.ParseMode(strings.Join(cmd.Args, " "))
		if err != nil {
			m.status = "Usage: /mode concise|detailed"
			return m, nil
		}
		m.opts.Mode = mode
		m.status = "Response mode: " + string(mode)
	case "rag", "web":
		on, err := parseToggle(cmd.Args)
		if err != nil {
			m.status = fmt.Sprintf("Usage: /%s on|off", cmd.Name)
			return m, nil
		}
		if cmd.Name == "rag" {
			m.opts.UseRAG = on
		} else {
			m.opts.UseWeb = on
		}
		m.status = fmt.Sprintf("%s %s", strings.ToUpper(cmd.Name), onOff(on))
	case "temperature":
		temp, err := parseTemperature(cmd.Args)
		if err != nil {
			m.status = "Usage: /temperature <0..1>"
			return m, nil
		}
		m.opts.Temperature = temp
		m.status = fmt.Sprintf("Temperature: %.2f", temp)
	case "reset":
		m.session.Reset()
		m.chunks = 0
		m.history = nil
		m.entries = []entry{{kind: entryWarning, text: disclaimer}, {kind: entryInfo, text: "Session cleared."}}
		m.status = "Session cleared."
	default:
		m.status = fmt.Sprintf("Unknown command /%s. Type /help.", cmd.Name)
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m Model) ask(question string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, llm.Message{Role: llm.RoleUser, Content: question})
	m.entries = append(m.entries, entry{kind: entryUser, text: question})
	m.busy = true
	m.status = "Thinking..."
	m.refresh()

	ctx, responder, opts := m.ctx, m.assistant, m.opts
	history := append([]llm.Message(nil), m.history...)
	return m, func() tea.Msg {
		reply, err := responder.Reply(ctx, history, opts)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) search(query string) {
	if query == "" {
		m.status = "Usage: /search <query>"
		return
	}
	results, err := m.session.Query(query, m.opts.TopK)
	if err != nil {
		m.entries = append(m.entries, entry{kind: entryError, text: "Search failed: " + err.Error()})
		return
	}
	if len(results) == 0 {
		m.entries = append(m.entries, entry{kind: entryInfo, text: "No documents indexed yet. Use /add first."})
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d chunk(s) for %q:", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n\n%d. %s #%d  score=%.3f\n%s", i+1, r.Chunk.Source, r.Chunk.Index, r.Score,
			highlightBestSentence(r.Chunk.Text, query))
	}
	m.entries = append(m.entries, entry{kind: entryInfo, text: sb.String()})
	m.status = fmt.Sprintf("Results for %q", query)
}

func (m Model) ingest(paths []string) tea.Cmd {
	ctx, session := m.ctx, m.session
	paths = append([]string(nil), paths...)
	return func() tea.Msg {
		reports, err := session.IngestDocuments(ctx, paths)
		return ingestDoneMsg{reports: reports, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the transcript, input line and status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Medical Information Assistant")
	settings := mutedStyle.Render(fmt.Sprintf("mode: %s | rag: %s | web: %s | temp: %.2f | chunks: %d",
		m.opts.Mode, onOff(m.opts.UseRAG), onOff(m.opts.UseWeb), m.opts.Temperature, m.chunks))
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = busyStyle.Render(m.status)
	}
	return header + "\n" + settings + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	width := max(20, m.viewport.Width)
	wrap := lipgloss.NewStyle().Width(width)
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		var label string
		switch e.kind {
		case entryUser:
			label = userStyle.Render("You")
		case entryAssistant:
			label = assistantStyle.Render("Assistant")
		case entryWarning:
			label = warningStyle.Render("Note")
		case entryError:
			label = errorStyle.Render("Error")
		default:
			label = mutedStyle.Render("Info")
		}
		parts = append(parts, label+"\n"+wrap.Render(e.text))
	}
	return strings.Join(parts, "\n\n")
}

func describeReport(r service.IngestReport) string {
	if r.Skipped {
		return fmt.Sprintf("%s: no extractable text, skipped.", r.Source)
	}
	msg := fmt.Sprintf("%s: %d chunk(s) indexed.", r.Source, r.Chunks)
	if n := len(r.PageFailures); n > 0 {
		msg += fmt.Sprintf(" %d page(s) could not be read.", n)
	}
	if r.Summary != "" {
		msg += "\nSummary: " + r.Summary
	}
	return msg
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
