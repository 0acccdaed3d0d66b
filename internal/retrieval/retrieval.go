// Package retrieval gathers transcript text per sub-query with a two-stage,
// diversity-aware search across the content and metadata collections.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"call-insights-go/internal/types"
	"call-insights-go/internal/vectorstore"
)

// Searcher runs one search against a collection.
type Searcher interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) ([]types.Hit, error)
}

// Options are the MMR parameters of both stages.
type Options struct {
	Lambda       float64
	Stage1K      int
	Stage1FetchK int
	Stage2K      int
	Stage2FetchK int
	Concurrency  int
}

func DefaultOptions() Options {
	return Options{Lambda: 0.75, Stage1K: 4, Stage1FetchK: 20, Stage2K: 70, Stage2FetchK: 140, Concurrency: 4}
}

type Retriever struct {
	content  Searcher
	metadata Searcher
	opts     Options
	log      *logrus.Entry
}

func New(content, metadata Searcher, opts Options, log *logrus.Entry) *Retriever {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Retriever{content: content, metadata: metadata, opts: opts, log: log.WithField("component", "retrieval")}
}

// Retrieve returns one text bundle per sub-query. Stage 1 searches the
// content collection, restricted to candidates when there are any. Stage 2
// searches the metadata collection restricted to exactly the identifiers
// stage 1 returned, and joins the hit contents with single spaces.
// Sub-queries run concurrently; the first failure cancels the rest.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, candidates types.IDSet) (map[string]string, error) {
	var restrict []string
	if len(candidates) > 0 {
		restrict = candidates.Sorted()
	}

	bundles := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			text, err := r.retrieveOne(gctx, q, restrict)
			if err != nil {
				return fmt.Errorf("retrieve %q: %w", q, err)
			}
			bundles[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(queries))
	for i, q := range queries {
		out[q] = bundles[i]
	}
	return out, nil
}

func (r *Retriever) retrieveOne(ctx context.Context, query string, candidates []string) (string, error) {
	start := time.Now()
	first, err := r.content.Search(ctx, vectorstore.SearchRequest{
		Text:     query,
		Mode:     vectorstore.ModeMMR,
		Lambda:   r.opts.Lambda,
		Restrict: len(candidates) > 0,
		IDs:      candidates,
		Limit:    r.opts.Stage1K,
		FetchK:   r.opts.Stage1FetchK,
	})
	if err != nil {
		return "", fmt.Errorf("stage 1: %w", err)
	}

	ids := make([]string, 0, len(first))
	seen := types.NewIDSet()
	for _, h := range first {
		if h.ID == "" || seen.Has(h.ID) {
			continue
		}
		seen.Add(h.ID)
		ids = append(ids, h.ID)
	}
	if len(ids) == 0 {
		r.log.WithField("query", query).Debug("stage 1 found nothing")
		return "", nil
	}

	second, err := r.metadata.Search(ctx, vectorstore.SearchRequest{
		Text:     query,
		Mode:     vectorstore.ModeMMR,
		Lambda:   r.opts.Lambda,
		Restrict: true,
		IDs:      ids,
		Limit:    r.opts.Stage2K,
		FetchK:   r.opts.Stage2FetchK,
	})
	if err != nil {
		return "", fmt.Errorf("stage 2: %w", err)
	}

	parts := make([]string, len(second))
	for i, h := range second {
		parts[i] = h.Content
	}
	r.log.WithFields(logrus.Fields{
		"query":       query,
		"stage1_ids":  len(ids),
		"stage2_hits": len(second),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("transcripts retrieved")
	return strings.Join(parts, " "), nil
}
