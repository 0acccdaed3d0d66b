// Package filtering narrows the corpus to candidate call identifiers by
// running each sub-query as a metadata query.
package filtering

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/types"
)

// MetadataStore answers structured metadata queries.
type MetadataStore interface {
	Query(ctx context.Context, text string, limit int) ([]types.Document, error)
	Describe(docs []types.Document) string
}

// Filter runs metadata queries for a batch of sub-queries.
type Filter struct {
	store MetadataStore
	limit int
	log   *logrus.Entry
}

func New(store MetadataStore, limit int, log *logrus.Entry) *Filter {
	if limit <= 0 {
		limit = 1000
	}
	return &Filter{store: store, limit: limit, log: log.WithField("component", "filtering")}
}

// RetrieveCandidates queries the store once per sub-query. Matches are
// deduplicated across the whole batch by content and metadata before their
// identifiers are collected. Each sub-query also gets a statistical summary
// of its own matches; a query without matches gets an empty summary.
func (f *Filter) RetrieveCandidates(ctx context.Context, queries []string) (types.IDSet, map[string]string, error) {
	seen := make(map[string]bool)
	var unique []types.Document
	summaries := make(map[string]string, len(queries))

	for _, q := range queries {
		docs, err := f.store.Query(ctx, q, f.limit)
		if err != nil {
			return nil, nil, fmt.Errorf("metadata filter %q: %w", q, err)
		}
		for _, d := range docs {
			k, err := d.Key()
			if err != nil {
				return nil, nil, fmt.Errorf("metadata filter %q: %w", q, err)
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			unique = append(unique, d)
		}
		summaries[q] = summarize(q, f.store.Describe(docs), len(docs))
		f.log.WithFields(logrus.Fields{"query": q, "matches": len(docs)}).Debug("metadata query matched")
	}

	ids := types.NewIDSet()
	for _, d := range unique {
		ids.Add(d.ID())
	}
	f.log.WithFields(logrus.Fields{
		"queries":    len(queries),
		"documents":  len(unique),
		"candidates": len(ids),
	}).Info("metadata filtering finished")
	return ids, summaries, nil
}

func summarize(query, table string, matches int) string {
	if matches == 0 || table == "" {
		return ""
	}
	return "Metadata Statistical Summary :\n" + table + "\n\n for Metadata Query:\n" + query
}
