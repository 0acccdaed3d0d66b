package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/config"
	"call-insights-go/internal/ingest"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

func mockConfig(t *testing.T) config.Config {
	return config.Config{
		LLM: config.LLMConfig{Provider: "mock", EmbedCacheSize: 64},
		Store: config.StoreConfig{
			Backend:            "sqlite",
			SQLitePath:         filepath.Join(t.TempDir(), "app.db"),
			MetadataCollection: "call_embeddings",
			ContentCollection:  "call_embeddings_detailed",
		},
		Pipeline: config.DefaultPipeline(),
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), config.LLMConfig{Provider: "openai"}, logger.Discard().Entry)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestApp_MockEndToEnd(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard().Entry
	a, err := New(ctx, mockConfig(t), log)
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.Ready(ctx))

	recs := []types.TranscriptRecord{
		{ID: "1", Content: "customer asked about the interest rate on a home loan", Metadata: types.Metadata{types.IDField: "1", "language": "Hindi"}},
		{ID: "2", Content: "customer was not eligible for the loan amount requested", Metadata: types.Metadata{types.IDField: "2", "language": "English"}},
		{ID: "3", Content: "agent explained the documents needed for the loan", Metadata: types.Metadata{types.IDField: "3", "language": "Hindi"}},
	}
	_, err = ingest.Run(ctx, recs, a.Metadata, a.Content, ingest.Options{ChunkWords: 5, BatchSize: 2}, log)
	require.NoError(t, err)
	require.NoError(t, a.Ready(ctx))

	res, err := a.Pipeline.Answer(ctx, "why do customers drop off?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Report, "MOCK REPORT"), res.Report)
	assert.Equal(t, "Summary", res.Variant)
	assert.Len(t, res.Counts, 2)
	assert.Equal(t, []string{"why do customers drop off?"}, res.Plan.Filtering[types.TranscriptFiltering])

	ev, err := a.Judge.Evaluate(ctx, res.Question, res.Report)
	require.NoError(t, err)
	assert.Equal(t, "GREEN", ev.Color.Code)
}
