// Package ingest loads transcript records into the metadata and content
// collections.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/dataset"
	"call-insights-go/internal/types"
	"call-insights-go/internal/vectorstore"
)

// Sink is a collection records can be added to.
type Sink interface {
	Name() string
	Add(ctx context.Context, recs []vectorstore.Record, batch int) error
}

type Options struct {
	ChunkWords int
	BatchSize  int
}

type Stats struct {
	Records  int           `json:"records"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

// Run stores one row per record in metadata (whole transcript plus all
// attributes) and word-window chunks of each transcript in content.
func Run(ctx context.Context, recs []types.TranscriptRecord, metadata, content Sink, opts Options, log *logrus.Entry) (Stats, error) {
	start := time.Now()
	log = log.WithField("component", "ingest")

	rows := make([]vectorstore.Record, 0, len(recs))
	var chunks []vectorstore.Record
	for _, r := range recs {
		rows = append(rows, vectorstore.Record{Key: r.ID, ID: r.ID, Content: r.Content, Metadata: r.Metadata})
		for _, c := range dataset.ChunkRecord(r, opts.ChunkWords) {
			chunks = append(chunks, vectorstore.Record{Key: c.Key, ID: c.ID, Content: c.Content, Metadata: c.Metadata})
		}
	}

	if err := metadata.Add(ctx, rows, opts.BatchSize); err != nil {
		return Stats{}, fmt.Errorf("ingest %s: %w", metadata.Name(), err)
	}
	log.WithFields(logrus.Fields{"collection": metadata.Name(), "rows": len(rows)}).Info("metadata collection loaded")

	if err := content.Add(ctx, chunks, opts.BatchSize); err != nil {
		return Stats{}, fmt.Errorf("ingest %s: %w", content.Name(), err)
	}
	log.WithFields(logrus.Fields{"collection": content.Name(), "rows": len(chunks)}).Info("content collection loaded")

	return Stats{Records: len(rows), Chunks: len(chunks), Duration: time.Since(start)}, nil
}
