// Package app wires configuration into a ready pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/analysis"
	"call-insights-go/internal/config"
	"call-insights-go/internal/evaluation"
	"call-insights-go/internal/evidence"
	"call-insights-go/internal/filtering"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/reporting"
	"call-insights-go/internal/retrieval"
	"call-insights-go/internal/router"
	"call-insights-go/internal/selfquery"
	"call-insights-go/internal/vectorstore"
)

// App holds the long-lived pieces shared by the commands.
type App struct {
	Config   config.Config
	LLM      llm.Client
	Backend  vectorstore.Backend
	Metadata *vectorstore.Collection
	Content  *vectorstore.Collection
	Pipeline *pipeline.Pipeline
	Judge    *evaluation.Judge
	log      *logrus.Entry
}

// NewProvider builds the configured LLM client behind an embedding cache.
func NewProvider(ctx context.Context, cfg config.LLMConfig, log *logrus.Entry) (llm.Client, error) {
	var (
		c   llm.Client
		err error
	)
	switch cfg.Provider {
	case "mock":
		c = llm.NewMock()
	case "gemini":
		c, err = llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.EmbeddingModel)
	case "gateway":
		c, err = llm.NewGateway(llm.GatewayConfig{
			ChatURL:        cfg.GatewayURL,
			EmbeddingsURL:  cfg.EmbeddingsURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
			HTTPTimeout:    cfg.HTTPTimeout,
			MaxRetryTime:   cfg.MaxRetryTime,
		}, log)
	default:
		err = fmt.Errorf("llm provider %q: %w", cfg.Provider, llm.ErrNotConfigured)
	}
	if err != nil {
		return nil, err
	}
	return llm.WithEmbedCache(c, cfg.EmbedCacheSize)
}

// New opens the store and assembles the pipeline.
func New(ctx context.Context, cfg config.Config, log *logrus.Entry) (*App, error) {
	client, err := NewProvider(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	backend, err := vectorstore.Open(ctx, cfg.Store.Backend, cfg.Store.SQLitePath, cfg.Store.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:   cfg,
		LLM:      client,
		Backend:  backend,
		Metadata: vectorstore.NewCollection(cfg.Store.MetadataCollection, backend, client, log),
		Content:  vectorstore.NewCollection(cfg.Store.ContentCollection, backend, client, log),
		log:      log,
	}
	a.Pipeline = a.buildPipeline()
	a.Judge = evaluation.New(client, nil, cfg.Pipeline.Concurrency, log)
	return a, nil
}

func (a *App) buildPipeline() *pipeline.Pipeline {
	p := a.Config.Pipeline
	meta := selfquery.NewStore(a.LLM, a.Metadata, p.Domain, a.log)
	return pipeline.New(pipeline.Deps{
		Router: router.New(a.LLM, p.Domain, a.log),
		Filter: filtering.New(meta, p.MetadataLimit, a.log),
		Retriever: retrieval.New(a.Content, a.Metadata, retrieval.Options{
			Lambda:       p.Lambda,
			Stage1K:      p.Stage1K,
			Stage1FetchK: p.Stage1FetchK,
			Stage2K:      p.Stage2K,
			Stage2FetchK: p.Stage2FetchK,
			Concurrency:  p.Concurrency,
		}, a.log),
		Analyzer: analysis.New(a.LLM, p.Domain, a.log),
		Counter: evidence.NewCounter(meta, evidence.Thresholds{
			Initial: p.EvidenceInitial,
			Floor:   p.EvidenceFloor,
			Step:    p.EvidenceStep,
			Limit:   p.EvidenceLimit,
		}, a.log),
		Reporter: reporting.New(a.LLM, a.log),
	}, p.TotalRecords, p.Concurrency, a.log)
}

// Ready reports whether both collections hold data.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	for _, c := range []*vectorstore.Collection{a.Metadata, a.Content} {
		n, err := c.Count(ctx)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		case n == 0:
			errs = append(errs, fmt.Errorf("%s is empty", c.Name()))
		}
	}
	return errors.Join(errs...)
}

func (a *App) Close() error {
	return a.Backend.Close()
}
