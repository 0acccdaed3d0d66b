// Command ingest loads the transcript workbook into both collections.
package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"call-insights-go/internal/app"
	"call-insights-go/internal/config"
	"call-insights-go/internal/dataset"
	"call-insights-go/internal/ingest"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	path := flag.String("dataset", cfg.Dataset.Path, "xlsx workbook with one call per row")
	describe := flag.Bool("describe", false, "log the metadata summary after loading")
	flag.Parse()

	log := logger.NewWith(cfg.Environment, cfg.LogLevel)
	ctx := context.Background()

	recs, err := dataset.Load(*path, log.WithComponent("dataset"))
	if err != nil {
		log.WithError(err).Fatal("failed to load dataset")
	}
	if *describe {
		rows := make([]types.Metadata, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, r.Metadata)
		}
		log.Info("metadata summary\n" + dataset.Describe(rows))
	}

	a, err := app.New(ctx, cfg, log.WithComponent("app"))
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer a.Close()

	stats, err := ingest.Run(ctx, recs, a.Metadata, a.Content, ingest.Options{
		ChunkWords: cfg.Dataset.ChunkWords,
		BatchSize:  cfg.Dataset.BatchSize,
	}, log.Entry)
	if err != nil {
		log.WithError(err).Fatal("ingest failed")
	}
	log.WithFields(logrus.Fields{
		"records":     stats.Records,
		"chunks":      stats.Chunks,
		"duration_ms": stats.Duration.Milliseconds(),
	}).Info("ingest finished")
}
