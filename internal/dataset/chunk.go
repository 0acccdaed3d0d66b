package dataset

import (
	"strconv"
	"strings"

	"call-insights-go/internal/types"
)

// Chunk is one window of a transcript destined for the content store.
type Chunk struct {
	Key      string
	ID       string
	Content  string
	Metadata types.Metadata
}

// ChunkRecord splits a transcript into windows of at most words words.
// Keys are "<id>#<n>"; every chunk carries the record's identifier.
// words <= 0 keeps the transcript whole.
func ChunkRecord(rec types.TranscriptRecord, words int) []Chunk {
	fields := strings.Fields(rec.Content)
	if words <= 0 || len(fields) <= words {
		return []Chunk{newChunk(rec, 0, strings.Join(fields, " "))}
	}
	var out []Chunk
	for start, n := 0, 0; start < len(fields); start, n = start+words, n+1 {
		end := min(start+words, len(fields))
		out = append(out, newChunk(rec, n, strings.Join(fields[start:end], " ")))
	}
	return out
}

func newChunk(rec types.TranscriptRecord, n int, text string) Chunk {
	return Chunk{
		Key:      rec.ID + "#" + strconv.Itoa(n),
		ID:       rec.ID,
		Content:  text,
		Metadata: types.Metadata{types.IDField: rec.ID, "chunk": n},
	}
}
