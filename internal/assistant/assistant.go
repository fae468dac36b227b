// Package assistant assembles grounded prompts and produces chat replies.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"medrag/internal/llm"
)

// Mode selects the response style.
type Mode string

const (
	Concise  Mode = "concise"
	Detailed Mode = "detailed"
)

// ParseMode accepts "concise" or "detailed" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Concise:
		return Concise, nil
	case Detailed:
		return Detailed, nil
	}
	return "", fmt.Errorf("unknown response mode %q", s)
}

const (
	ragHeader = "LOCAL MEDICAL NOTES (from uploaded PDFs):\n"
	webHeader = "WEB SEARCH CONTEXT (DuckDuckGo medical snippets):\n"
)

const basePrompt = "You are a cautious, helpful medical information assistant. " +
	"You explain medical topics in simple language for education only.\n\n" +
	"SAFETY RULES:\n" +
	"- You are not a doctor and cannot diagnose, treat, or prescribe medicines.\n" +
	"- Do not give drug names, dosages, or treatment plans.\n" +
	"- Do not suggest dangerous actions or home treatments for emergencies.\n" +
	"- Encourage users to consult licensed medical professionals for personal advice.\n" +
	"- If symptoms sound like an emergency, tell the user to seek emergency care immediately.\n"

const conciseStyle = "\nRESPONSE STYLE:\n" +
	"- Keep answers short (2–4 sentences).\n" +
	"- Use simple language.\n" +
	"- Highlight only key points.\n"

const detailedStyle = "\nRESPONSE STYLE:\n" +
	"- Provide a structured, detailed explanation with headings and bullet points.\n" +
	"- Break down concepts step by step in simple language.\n" +
	"- Include typical causes, risk factors, and when to see a doctor.\n"

// SystemPrompt returns the safety rules followed by the style for mode.
func SystemPrompt(mode Mode) string {
	if mode == Detailed {
		return basePrompt + detailedStyle
	}
	return basePrompt + conciseStyle
}

// Retriever is the part of the RAG session the assistant reads from.
type Retriever interface {
	IsEmpty() bool
	Retrieve(query string, topK int) ([]string, error)
}

// WebSearcher returns formatted web snippets for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// ChatModel completes a conversation.
type ChatModel interface {
	Chat(ctx context.Context, systemPrompt string, messages []llm.Message, temperature float64) (string, error)
}

// Options are the per-turn settings.
type Options struct {
	Mode          Mode
	UseRAG        bool
	UseWeb        bool
	TopK          int
	MaxWebResults int
	Temperature   float64
}

// Reply is one assistant turn.
type Reply struct {
	Content      string
	SystemPrompt string
	Chunks       []string
	Warnings     []string
}

// Assistant combines retrieval, web search and the chat model.
// Any collaborator may be nil.
type Assistant struct {
	retriever Retriever
	web       WebSearcher
	model     ChatModel
	logger    *zap.Logger
}

// ErrNoQuestion is returned when the history holds no user message.
var ErrNoQuestion = errors.New("no user message to answer")

func New(retriever Retriever, web WebSearcher, model ChatModel, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{retriever: retriever, web: web, model: model, logger: logger}
}

// HasModel reports whether replies are generated by a chat model.
func (a *Assistant) HasModel() bool { return a.model != nil }

// Reply answers the last user message in history. Retrieval and web search
// failures are reported as warnings; a chat model failure is returned.
func (a *Assistant) Reply(ctx context.Context, history []llm.Message, opts Options) (Reply, error) {
	question := lastUserMessage(history)
	if question == "" {
		return Reply{}, ErrNoQuestion
	}

	var reply Reply
	blocks := []string{SystemPrompt(opts.Mode)}

	if opts.UseRAG && a.retriever != nil && !a.retriever.IsEmpty() {
		chunks, err := a.retriever.Retrieve(question, opts.TopK)
		if err != nil {
			reply.Warnings = append(reply.Warnings, fmt.Sprintf("RAG retrieval failed: %v", err))
			a.logger.Warn("retrieval failed", zap.Error(err))
		} else if len(chunks) > 0 {
			reply.Chunks = chunks
			blocks = append(blocks, RAGContext(chunks))
		}
	}

	if opts.UseWeb && a.web != nil {
		results, err := a.web.Search(ctx, question, opts.MaxWebResults)
		if err != nil {
			reply.Warnings = append(reply.Warnings, fmt.Sprintf("Web search failed: %v", err))
			a.logger.Warn("web search failed", zap.Error(err))
		} else if results != "" {
			blocks = append(blocks, webHeader+results)
		}
	}

	reply.SystemPrompt = strings.Join(blocks, "\n\n")

	if a.model == nil {
		if len(reply.Chunks) > 0 {
			reply.Content = RAGContext(reply.Chunks)
		} else {
			reply.Content = "No chat model is configured and no local notes matched the question."
		}
		return reply, nil
	}

	content, err := a.model.Chat(ctx, reply.SystemPrompt, history, opts.Temperature)
	if err != nil {
		return reply, err
	}
	reply.Content = content
	a.logger.Info("reply generated",
		zap.String("mode", string(opts.Mode)),
		zap.Int("chunks", len(reply.Chunks)),
		zap.Int("warnings", len(reply.Warnings)),
	)
	return reply, nil
}

// RAGContext formats retrieved chunks as a prompt block.
func RAGContext(chunks []string) string {
	var sb strings.Builder
	sb.WriteString(ragHeader)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(c)
	}
	return sb.String()
}

func lastUserMessage(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
