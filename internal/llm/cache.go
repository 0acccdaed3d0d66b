package llm

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes vectors per text in front of another Embedder.
// Evidence counting embeds the same reason once per threshold, and the
// retriever embeds each sub-query for both stages.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embed cache: got %d vectors for %d inputs", len(vecs), len(missing))
	}
	for j, v := range vecs {
		c.cache.Add(missing[j], v)
		out[missingIdx[j]] = v
	}
	return out, nil
}

// cachedClient pairs a Chatter with a cached Embedder.
type cachedClient struct {
	Chatter
	*CachedEmbedder
}

// WithEmbedCache wraps a Client so its embeddings go through an LRU cache.
func WithEmbedCache(c Client, size int) (Client, error) {
	ce, err := NewCachedEmbedder(c, size)
	if err != nil {
		return nil, err
	}
	return cachedClient{Chatter: c, CachedEmbedder: ce}, nil
}
