// Package selfquery turns a natural-language sub-query into a structured
// metadata query (search text, attribute filter and limit) with the LLM, and
// runs it against the metadata collection.
package selfquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/dataset"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/types"
	"call-insights-go/internal/vectorstore"
)

// Searcher is the collection the constructed queries run against.
type Searcher interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) ([]types.Hit, error)
}

// StructuredQuery is the constructor's answer.
type StructuredQuery struct {
	Query  string              `json:"query"`
	Filter *vectorstore.Filter `json:"filter"`
	Limit  int                 `json:"limit,omitempty"`
}

// Store is the metadata store: self-query search plus describe statistics.
type Store struct {
	chat     llm.Chatter
	searcher Searcher
	domain   string
	log      *logrus.Entry
}

func NewStore(chat llm.Chatter, searcher Searcher, domain string, log *logrus.Entry) *Store {
	return &Store{
		chat:     chat,
		searcher: searcher,
		domain:   domain,
		log:      log.WithField("component", "selfquery"),
	}
}

// Construct asks the LLM for a structured query. The filter is validated
// before it is returned.
func (s *Store) Construct(ctx context.Context, text string) (StructuredQuery, error) {
	answer, err := s.chat.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskSelfQuery,
		System:    systemPrompt(s.domain),
		User:      "User Query: " + text,
		MaxTokens: 400,
		JSON:      true,
	})
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("construct query: %w", err)
	}
	var sq StructuredQuery
	if err := llm.DecodeJSON(answer, &sq); err != nil {
		return StructuredQuery{}, fmt.Errorf("construct query: decode %q: %w", answer, err)
	}
	if sq.Filter != nil {
		if err := sq.Filter.Validate(); err != nil {
			return StructuredQuery{}, fmt.Errorf("construct query: %w", err)
		}
	}
	sq.Query = strings.TrimSpace(sq.Query)
	return sq, nil
}

// Query runs text as a self-query capped at limit matches. An empty
// constructed search text falls back to the sub-query itself.
func (s *Store) Query(ctx context.Context, text string, limit int) ([]types.Document, error) {
	sq, err := s.Construct(ctx, text)
	if err != nil {
		return nil, err
	}
	search := sq.Query
	if search == "" {
		search = text
	}
	if sq.Limit > 0 && sq.Limit < limit {
		limit = sq.Limit
	}

	hits, err := s.searcher.Search(ctx, vectorstore.SearchRequest{
		Text:   search,
		Mode:   vectorstore.ModeSimilarity,
		Filter: sq.Filter,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	docs := make([]types.Document, len(hits))
	for i, h := range hits {
		docs[i] = types.Document{Content: h.Content, Metadata: h.Metadata}
	}
	s.log.WithFields(logrus.Fields{
		"query":    text,
		"search":   search,
		"filtered": sq.Filter != nil,
		"matches":  len(docs),
	}).Info("metadata query finished")
	return docs, nil
}

// Describe summarizes the metadata of docs.
func (s *Store) Describe(docs []types.Document) string {
	rows := make([]types.Metadata, len(docs))
	for i, d := range docs {
		rows[i] = d.Metadata
	}
	return dataset.Describe(rows)
}

// Search passes a raw request to the metadata collection.
func (s *Store) Search(ctx context.Context, req vectorstore.SearchRequest) ([]types.Hit, error) {
	return s.searcher.Search(ctx, req)
}

func systemPrompt(domain string) string {
	var b strings.Builder
	b.WriteString("Your goal is to structure the user's query to match the request schema below.\n")
	b.WriteString("The documents are call transcripts of " + domain + ".\n\n")
	b.WriteString("Answer with one JSON object:\n")
	b.WriteString(`{"query": string, "filter": object or null, "limit": integer or null}` + "\n\n")
	b.WriteString("\"query\" is the text to match against transcript content; leave it empty when the request is only about attributes.\n")
	b.WriteString("\"filter\" is either a comparison {\"comparator\": C, \"attribute\": A, \"value\": V}\n")
	b.WriteString("or a logical operation {\"operator\": O, \"arguments\": [filters]}.\n")
	b.WriteString("C is one of eq, ne, gt, gte, lt, lte, in, nin, contain, like. O is one of and, or, not.\n")
	b.WriteString("Use in/nin with a list value. Dates use the form YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS.\n")
	b.WriteString("Only use the attributes listed below, and only when the query needs them.\n")
	b.WriteString("\"limit\" is set only when the user asks for a specific number of calls.\n\n")
	b.WriteString("Attributes:\n")
	for _, a := range dataset.Attributes {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Key, a.Kind, a.Description)
	}
	return b.String()
}
