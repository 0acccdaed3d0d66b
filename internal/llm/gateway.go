package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// GatewayConfig points the client at an OpenAI-compatible gateway.
type GatewayConfig struct {
	ChatURL        string
	EmbeddingsURL  string
	Model          string
	EmbeddingModel string
	APIKey         string
	HTTPTimeout    time.Duration
	MaxRetryTime   time.Duration
}

// Gateway talks to an OpenAI-compatible chat/embeddings gateway.
type Gateway struct {
	cfg  GatewayConfig
	http *http.Client
	log  *logrus.Entry
}

func NewGateway(cfg GatewayConfig, log *logrus.Entry) (*Gateway, error) {
	if cfg.ChatURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway: %w", ErrNotConfigured)
	}
	if cfg.EmbeddingsURL == "" {
		cfg.EmbeddingsURL = siblingURL(cfg.ChatURL, "embeddings")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 25 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 45 * time.Second
	}
	return &Gateway{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		log:  log.WithField("component", "llm-gateway"),
	}, nil
}

// siblingURL swaps the last path segment, e.g. /v1/chat/completions -> /v1/embeddings.
func siblingURL(chatURL, leaf string) string {
	u := strings.TrimRight(chatURL, "/")
	if i := strings.Index(u, "/chat/completions"); i >= 0 {
		return u[:i] + "/" + leaf
	}
	if i := strings.LastIndex(u, "/"); i > len("https://") {
		return u[:i] + "/" + leaf
	}
	return u + "/" + leaf
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Chat sends one system+user exchange and returns choices[0].message.content.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := chatPayload{
		Model:       g.cfg.Model,
		Temperature: 0.0,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.User})
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	start := time.Now()
	body, err := g.post(ctx, g.cfg.ChatURL, payload)
	if err != nil {
		return "", fmt.Errorf("llm chat: %w", err)
	}
	g.log.WithFields(logrus.Fields{
		"task":        req.Task,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("llm chat finished")
	content, err := contentFromChoices(body)
	if err != nil {
		return "", fmt.Errorf("llm chat: %w", err)
	}
	return strings.TrimSpace(content), nil
}

type embeddingsPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := g.post(ctx, g.cfg.EmbeddingsURL, embeddingsPayload{Model: g.cfg.EmbeddingModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("llm embed: %w", err)
	}
	var resp embeddingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("llm embed: decode: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llm embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("llm embed: vector index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// post sends a JSON payload with retry/backoff on transport errors and 5xx.
// 4xx answers are permanent.
func (g *Gateway) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	g.log.WithField("payload_len", len(data)).Debug("llm request")

	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.http.Do(req)
		if err != nil {
			g.log.WithField("error", err.Error()).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		g.log.WithField("http_status", resp.StatusCode).Debug("llm raw:\n" + string(body))

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("gateway server error %d: %s", resp.StatusCode, truncate(body, 200))
		case resp.StatusCode >= 400:
			// Permanent: don't retry on client errors
			return backoff.Permanent(fmt.Errorf("gateway client error %d: %s", resp.StatusCode, truncate(body, 200)))
		}
		out = body
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.cfg.MaxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// contentFromChoices reads openai-style choices[0].message.content.
func contentFromChoices(body []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode choices: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM output")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
