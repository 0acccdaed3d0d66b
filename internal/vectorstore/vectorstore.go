// Package vectorstore keeps embedded call records in named collections and
// answers similarity, diversity-aware (MMR) and metadata-filtered searches.
//
// A Collection pairs an embedder with a Backend. Backends only persist rows
// and rank them by cosine similarity; MMR selection and structured filters
// run in Go on the ranked candidates, so every backend behaves the same.
package vectorstore

import (
	"context"
	"errors"

	"call-insights-go/internal/types"
)

// ErrUnknownBackend is returned for a backend name other than sqlite or postgres.
var ErrUnknownBackend = errors.New("unknown store backend")

// Record is one stored row. Key is unique within a collection; ID is the call
// identifier shared by both collections (several chunk rows may share an ID).
type Record struct {
	Key       string
	ID        string
	Content   string
	Metadata  types.Metadata
	Embedding []float32
}

// Candidate is a record ranked against a query vector.
type Candidate struct {
	Record
	Score float64
}

// Scope restricts which rows a backend considers.
type Scope struct {
	// Restrict limits candidates to IDs. A restricted scope with no IDs matches nothing.
	Restrict bool
	IDs      []string
	// Limit caps the number of candidates; zero or less means no cap.
	Limit int
}

// Backend persists records and ranks them by cosine similarity, best first.
type Backend interface {
	Upsert(ctx context.Context, collection string, recs []Record) error
	Nearest(ctx context.Context, collection string, query []float32, scope Scope) ([]Candidate, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// Mode selects the search strategy.
type Mode int

const (
	ModeSimilarity Mode = iota
	ModeMMR
)

func (m Mode) String() string {
	switch m {
	case ModeSimilarity:
		return "similarity"
	case ModeMMR:
		return "mmr"
	}
	return "unknown"
}

// SearchRequest describes one search against a collection.
type SearchRequest struct {
	Text string
	Mode Mode
	// Lambda weighs relevance against diversity in MMR (1 = relevance only).
	Lambda float64
	// Restrict limits results to records whose ID is in IDs.
	Restrict bool
	IDs      []string
	Filter   *Filter
	Limit    int
	// FetchK is the MMR candidate pool size; defaults to 4*Limit.
	FetchK int
	// MinScore drops hits scoring below it.
	MinScore float64
}
