package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when a provider is missing its endpoint or key.
var ErrNotConfigured = errors.New("llm provider not configured")

// ChatRequest is a single system+user exchange.
type ChatRequest struct {
	// Task names the prompt (decompose, classify, self_query, analysis, report, judge) for logs and the mock provider.
	Task      string
	System    string
	User      string
	MaxTokens int
	// JSON asks the provider for a JSON-only answer when it supports that.
	JSON bool
}

// Chatter answers one chat request with plain text.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is a provider offering both chat and embeddings.
type Client interface {
	Chatter
	Embedder
}

// ExtractJSON finds the first balanced JSON object or array in s.
// It strips common markdown fences first.
func ExtractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")

	// Remove markdown fences (commonly output by LLMs)
	for _, r := range []string{"```json", "```yaml", "```text", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	open, closing := s[start], byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	return ""
}

// DecodeJSON extracts the first JSON value from an LLM answer into out.
func DecodeJSON(answer string, out any) error {
	raw := ExtractJSON(answer)
	if raw == "" {
		return errors.New("no JSON found in LLM output")
	}
	return json.Unmarshal([]byte(raw), out)
}
