// Package router decomposes a question into sub-queries and assigns each one
// its filtering, analysis and reporting stages.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/types"
)

// ErrUnassigned is returned when the classifier leaves a query without stages.
var ErrUnassigned = errors.New("query has no stage assignment")

type Router struct {
	chat   llm.Chatter
	domain string
	log    *logrus.Entry
}

func New(chat llm.Chatter, domain string, log *logrus.Entry) *Router {
	return &Router{chat: chat, domain: domain, log: log.WithField("component", "router")}
}

// Route decomposes question and classifies every sub-query. The routes keep
// decomposition order with duplicates removed.
func (r *Router) Route(ctx context.Context, question string) (types.Routes, error) {
	subs, err := r.Decompose(ctx, question)
	if err != nil {
		return nil, err
	}
	assigned, err := r.Classify(ctx, subs)
	if err != nil {
		return nil, err
	}
	routes := make([]types.Route, len(subs))
	for i, q := range subs {
		routes[i] = types.Route{Query: q, Assignment: assigned[q]}
	}
	out := types.NewRoutes(routes...)
	r.log.WithFields(logrus.Fields{"question": question, "routes": len(out)}).Info("question routed")
	return out, nil
}

// Assign classifies the question itself.
func (r *Router) Assign(ctx context.Context, question string) (types.Assignment, error) {
	q := strings.TrimSpace(question)
	assigned, err := r.Classify(ctx, []string{q})
	if err != nil {
		return types.Assignment{}, err
	}
	return assigned[q], nil
}

// Decompose splits question into standalone sub-queries. An empty answer
// means the question is its own sub-query.
func (r *Router) Decompose(ctx context.Context, question string) ([]string, error) {
	answer, err := r.chat.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskDecompose,
		System:    decomposePrompt(r.domain),
		User:      question,
		MaxTokens: 400,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	var parsed struct {
		SubQueries []string `json:"sub_queries"`
	}
	if err := llm.DecodeJSON(answer, &parsed); err != nil {
		return nil, fmt.Errorf("decompose: decode %q: %w", answer, err)
	}
	var subs []string
	for _, s := range parsed.SubQueries {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		subs = []string{strings.TrimSpace(question)}
	}
	return subs, nil
}

// Classify assigns stages to each query. Every query must come back with
// all three stages and recognized names.
func (r *Router) Classify(ctx context.Context, queries []string) (map[string]types.Assignment, error) {
	payload, err := json.Marshal(map[string][]string{"queries": queries})
	if err != nil {
		return nil, err
	}
	answer, err := r.chat.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskClassify,
		System:    classifyPrompt,
		User:      string(payload),
		MaxTokens: 800,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	var raw map[string]map[string]string
	if err := llm.DecodeJSON(answer, &raw); err != nil {
		return nil, fmt.Errorf("classify: decode %q: %w", answer, err)
	}
	byText := make(map[string]map[string]string, len(raw))
	for q, fields := range raw {
		byText[strings.TrimSpace(q)] = fields
	}

	out := make(map[string]types.Assignment, len(queries))
	for _, q := range queries {
		fields, ok := byText[q]
		if !ok {
			return nil, fmt.Errorf("classify %q: %w", q, ErrUnassigned)
		}
		a, err := parseAssignment(fields)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", q, err)
		}
		out[q] = a
	}
	return out, nil
}

func parseAssignment(fields map[string]string) (types.Assignment, error) {
	var a types.Assignment
	var err error
	for _, key := range []string{"filtering_function", "analysis_function", "reporting_function"} {
		if _, ok := fields[key]; !ok {
			return a, fmt.Errorf("missing %s: %w", key, ErrUnassigned)
		}
	}
	if a.Filtering, err = types.ParseFilteringStage(fields["filtering_function"]); err != nil {
		return a, err
	}
	if a.Analysis, err = types.ParseAnalysisStage(fields["analysis_function"]); err != nil {
		return a, err
	}
	if a.Reporting, err = types.ParseReportingStage(fields["reporting_function"]); err != nil {
		return a, err
	}
	return a, nil
}

func decomposePrompt(domain string) string {
	return `You break a business question about call transcripts into standalone sub-queries.
The calls are ` + domain + `.
Each sub-query must be answerable on its own, either from call attributes (duration, language, purpose,
product, lead source, location, branch, outcome flags, agent, call time) or from what was said in the calls.
Do not split questions that are already simple.
Answer with JSON only: {"sub_queries": ["...", "..."]}. Return an empty list when the question needs no splitting.`
}

const classifyPrompt = `You decide how each query about call transcripts is processed.
For every query choose:
- filtering_function: "metadata_filtering" when the query restricts calls by attributes such as duration,
  language, purpose, product, lead source, location, branch, outcome flags, agent or call time;
  "transcript_filtering" when the answer depends on what was said in the calls; "none" when neither applies.
- analysis_function: "general_analysis" for a short factual answer; "detailed_analysis" when the user
  wants reasons, causes or key points.
- reporting_function: "Summary" for a single narrative paragraph; "Pointers" for a bulleted list.
Input is {"queries": [...]}. Answer with JSON only, one entry per query, using the query text verbatim as key:
{"<query>": {"filtering_function": "...", "analysis_function": "...", "reporting_function": "..."}}`
