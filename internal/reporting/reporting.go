package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/types"
)

const maxTokens = 500

// Reporter writes the final answer for leadership.
type Reporter struct {
	chat llm.Chatter
	log  *logrus.Entry
}

func New(chat llm.Chatter, log *logrus.Entry) *Reporter {
	return &Reporter{chat: chat, log: log.WithField("component", "reporting")}
}

// Report renders the final answer in the requested variant: Summary is a
// single paragraph, Pointers a bulleted list.
func (r *Reporter) Report(ctx context.Context, variant types.ReportingStage, question, analysis string, counts types.ReasonCounts, total int) (string, error) {
	system, user, err := BuildPrompt(variant, question, analysis, counts, total)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := r.chat.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskReport,
		System:    system,
		User:      user,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("report %s: %w", variant, err)
	}
	r.log.WithFields(logrus.Fields{
		"variant":     variant.String(),
		"reasons":     len(counts),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("report written")
	return out, nil
}

// FormatCounts lists reason counts one per line in reason order.
func FormatCounts(counts types.ReasonCounts) string {
	if len(counts) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, reason := range counts.Reasons() {
		fmt.Fprintf(&b, "- %s: %s\n", reason, counts[reason])
	}
	return strings.TrimRight(b.String(), "\n")
}

func BuildPrompt(variant types.ReportingStage, question, analysis string, counts types.ReasonCounts, total int) (string, string, error) {
	var system, ask string
	switch variant {
	case types.Summary:
		system = `You are an assistant for providing analysis of call transcripts in summary. Your task is to:
1. Summarize the findings based on the initial analysis, the count data and metadata summary provided.
2. Ensure all conclusions are backed by specific numbers and percentages.
3. Provide a comprehensive answer to the user's query using this quantitative data.`
		ask = "Please provide a summary of the final analysis that answers the user's query, ensuring all conclusions are backed by the quantitative data provided. Format the response in a single paragraph to provide an overview for senior leadership of a company."
	case types.Pointers:
		system = `You are an assistant for providing analysis of call transcripts in bullets. Your task is to:
1. Summarize the findings based on the initial analysis and the metadata summary if provided.
2. Ensure all conclusions are backed by specific numbers and percentages.
3. Provide bullet answer to the user's query using the quantitative data.`
		ask = "Please provide a final analysis that answers the user's query, ensuring all conclusions are backed by the quantitative data provided. Format the response in bullet points as this is intended for senior leadership of a company."
	default:
		return "", "", fmt.Errorf("report variant %d: %w", variant, types.ErrUnknownStage)
	}

	user := fmt.Sprintf(`The user asked: %s

Initial Analysis: %s

Quantitative Data:
Total Transcripts Analyzed: %d
Reason Counts:
%s

%s`, question, analysis, total, FormatCounts(counts), ask)
	return system, user, nil
}
