package tui

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"medrag/internal/summarizer"
)

const helpText = `Commands:
  /add <path> [path...]   ingest documents (globs allowed)
  /search <query>         show the best matching chunks with scores
  /mode concise|detailed  set the response style
  /rag on|off             ground replies in your documents
  /web on|off             add DuckDuckGo snippets to replies
  /temperature <0..1>     set the chat model sampling temperature
  /reset                  forget all documents and the conversation
  /quit                   leave
Anything else is sent to the assistant.`

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand recognises "/name arg..." lines. ok is false for chat input.
func ParseCommand(line string) (cmd Command, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

func parseToggle(args []string) (bool, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			return true, nil
		case "off", "false", "no":
			return false, nil
		}
	}
	return false, errors.New("expected on or off")
}

func parseTemperature(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one value")
	}
	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, err
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("temperature %v out of range [0, 1]", t)
	}
	return t, nil
}

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func highlightBestSentence(text, query string) string {
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == bestIdx && bestScore > 0 {
			s = highlightStyle.Render(s)
		}
		out[i] = s
	}
	return strings.Join(out, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
