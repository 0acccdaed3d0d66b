package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	TaskDecompose = "decompose"
	TaskClassify  = "classify"
	TaskSelfQuery = "self_query"
	TaskAnalysis  = "analysis"
	TaskReport    = "report"
	TaskJudge     = "judge"
)

// MockDimensions is the width of the mock embedding space.
const MockDimensions = 256

// Mock is a deterministic offline provider (USE_MOCK_LLM=true).
// Embeddings are hashed bag-of-words vectors, so texts sharing words score higher.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Chat(_ context.Context, req ChatRequest) (string, error) {
	switch req.Task {
	case TaskDecompose:
		// an empty list means "the question is its own sub-query"
		return `{"sub_queries": []}`, nil
	case TaskClassify:
		var in struct {
			Queries []string `json:"queries"`
		}
		if err := DecodeJSON(req.User, &in); err != nil {
			return "", fmt.Errorf("mock classify: %w", err)
		}
		out := make(map[string]map[string]string, len(in.Queries))
		for _, q := range in.Queries {
			out[q] = map[string]string{
				"filtering_function": "transcript_filtering",
				"analysis_function":  "detailed_analysis",
				"reporting_function": "Summary",
			}
		}
		b, _ := json.Marshal(out)
		return string(b), nil
	case TaskSelfQuery:
		return `{"query": "", "filter": null}`, nil
	case TaskAnalysis:
		return "Initial Analysis: offline mock analysis.\n\nReasons/Key Points:\n" +
			"1. Customer asked about the interest rate\n" +
			"2. Customer was not eligible for the loan amount\n", nil
	case TaskReport:
		return "MOCK REPORT: " + firstLine(req.User), nil
	case TaskJudge:
		// privacy remarks are scored as a share, where lower is better
		if strings.Contains(req.System, "Privacy") {
			return `{"score": 0.1, "reason": "offline mock judgement"}`, nil
		}
		return `{"score": 0.8, "reason": "offline mock judgement"}`, nil
	}
	return "MOCK: " + firstLine(req.User), nil
}

func (m *Mock) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashEmbedding(t, MockDimensions)
	}
	return out, nil
}

// HashEmbedding maps lowercase word tokens into a fixed-size, L2-normalized vector.
func HashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
