package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/types"
)

const defaultBatch = 64

// Collection is a named set of embedded records inside a Backend.
type Collection struct {
	name     string
	backend  Backend
	embedder llm.Embedder
	log      *logrus.Entry
}

func NewCollection(name string, backend Backend, embedder llm.Embedder, log *logrus.Entry) *Collection {
	return &Collection{
		name:     name,
		backend:  backend,
		embedder: embedder,
		log:      log.WithFields(logrus.Fields{"component": "vectorstore", "collection": name}),
	}
}

func (c *Collection) Name() string { return c.name }

// Add embeds recs in batches of batch texts and upserts them. Records that
// already carry an embedding are stored as is.
func (c *Collection) Add(ctx context.Context, recs []Record, batch int) error {
	if batch <= 0 {
		batch = defaultBatch
	}
	for start := 0; start < len(recs); start += batch {
		end := min(start+batch, len(recs))
		chunk := recs[start:end]

		var texts []string
		var idx []int
		for i, r := range chunk {
			if len(r.Embedding) == 0 {
				texts = append(texts, r.Content)
				idx = append(idx, i)
			}
		}
		if len(texts) > 0 {
			vecs, err := c.embedder.Embed(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed %s batch %d: %w", c.name, start/batch, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed %s: got %d vectors for %d texts", c.name, len(vecs), len(texts))
			}
			for j, i := range idx {
				chunk[i].Embedding = vecs[j]
			}
		}
		if err := c.backend.Upsert(ctx, c.name, chunk); err != nil {
			return fmt.Errorf("upsert %s: %w", c.name, err)
		}
		c.log.WithField("stored", end).Debug("batch stored")
	}
	return nil
}

// Count returns the number of stored rows.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx, c.name)
}

// Search embeds req.Text and returns hits best first (similarity) or in MMR
// selection order. A restricted request with no IDs returns nothing.
func (c *Collection) Search(ctx context.Context, req SearchRequest) ([]types.Hit, error) {
	if req.Restrict && len(req.IDs) == 0 {
		return nil, nil
	}
	if req.Text == "" {
		return nil, errors.New("search: empty query text")
	}
	if req.Limit <= 0 {
		req.Limit = 4
	}
	if req.Mode == ModeMMR && req.FetchK <= 0 {
		req.FetchK = 4 * req.Limit
	}

	start := time.Now()
	vecs, err := c.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("search %s: embed query: %w", c.name, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("search %s: embed query: got %d vectors", c.name, len(vecs))
	}

	pool := req.Limit
	if req.Mode == ModeMMR {
		pool = req.FetchK
	}
	scope := Scope{Restrict: req.Restrict, IDs: req.IDs, Limit: pool}
	if req.Filter != nil {
		// filters run in Go, so rank everything in scope first
		scope.Limit = 0
	}
	cands, err := c.backend.Nearest(ctx, c.name, vecs[0], scope)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}

	kept := cands[:0]
	for _, cand := range cands {
		if req.Filter != nil && !req.Filter.Match(cand.Metadata) {
			continue
		}
		if req.MinScore > 0 && cand.Score < req.MinScore {
			continue
		}
		kept = append(kept, cand)
	}
	if len(kept) > pool {
		kept = kept[:pool]
	}

	var picked []Candidate
	switch req.Mode {
	case ModeMMR:
		picked = MMR(kept, req.Limit, req.Lambda)
	default:
		picked = kept
	}

	hits := make([]types.Hit, len(picked))
	for i, p := range picked {
		hits[i] = types.Hit{ID: p.ID, Content: p.Content, Metadata: p.Metadata, Score: p.Score}
	}
	c.log.WithFields(logrus.Fields{
		"mode":        req.Mode.String(),
		"restricted":  req.Restrict,
		"filtered":    req.Filter != nil,
		"candidates":  len(cands),
		"hits":        len(hits),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("search finished")
	return hits, nil
}
