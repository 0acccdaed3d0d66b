package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/types"
)

const maxTokens = 500

// Analyzer reads retrieved transcripts and answers one sub-query.
type Analyzer struct {
	chat   llm.Chatter
	domain string
	log    *logrus.Entry
}

func New(chat llm.Chatter, domain string, log *logrus.Entry) *Analyzer {
	return &Analyzer{chat: chat, domain: domain, log: log.WithField("component", "analysis")}
}

// Analyze returns free-text analysis. Detailed mode asks for numbered
// reasons so evidence can be counted for each.
func (a *Analyzer) Analyze(ctx context.Context, mode types.AnalysisStage, query, transcripts string) (string, error) {
	system, user, err := BuildPrompt(mode, a.domain, query, transcripts)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := a.chat.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskAnalysis,
		System:    system,
		User:      user,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s for %q: %w", mode, query, err)
	}
	a.log.WithFields(logrus.Fields{
		"mode":             mode.String(),
		"query":            query,
		"transcript_chars": len(transcripts),
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("analysis finished")
	return out, nil
}

// BuildPrompt returns the system and user prompts for mode.
func BuildPrompt(mode types.AnalysisStage, domain, query, transcripts string) (string, string, error) {
	intro := "You are an assistant for analyzing call transcripts. The calls are " + domain + ".\n"
	switch mode {
	case types.GeneralAnalysis:
		system := intro + `Your task is to:
1. Identify the intent related to the user's query. The intent should relate to whether a product is getting sold.
2. Provide a brief answer in a summary.`
		user := fmt.Sprintf(`The user asked: %s

Analyze these transcripts and provide a brief summary answer:

%s
`, query, transcripts)
		return system, user, nil

	case types.DetailedAnalysis:
		system := intro + `Your task is to:
1. Identify potential reasons or key points related to the user's query. The intent should relate to whether a product is getting sold.
2. Provide a brief detailed analysis.
3. List the identified reasons or key points in a numbered format for easy parsing.`
		user := fmt.Sprintf(`The user asked: %s

Analyze these transcripts and provide an initial response, listing potential reasons or key points:

%s

Format your response as:
Initial Analysis: [Your brief analysis here]

Reasons/Key Points:
1. [First reason/point]
2. [Second reason/point]
...
`, query, transcripts)
		return system, user, nil
	}
	return "", "", fmt.Errorf("analysis mode %d: %w", mode, types.ErrUnknownStage)
}
