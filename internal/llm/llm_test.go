package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/logger"
)

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSON("Sure! ```json\n{\"a\": {\"b\": 1}}\n``` done"))
	assert.Equal(t, `["x", "y"]`, ExtractJSON(`here: ["x", "y"] trailing`))
	assert.Equal(t, `{"s": "brace } inside"}`, ExtractJSON(`{"s": "brace } inside"}`))
	assert.Equal(t, "", ExtractJSON("no json here"))
	assert.Equal(t, "", ExtractJSON(`{"unbalanced": 1`))
}

func TestDecodeJSON_NoJSON(t *testing.T) {
	var v map[string]any
	assert.Error(t, DecodeJSON("plain text", &v))
}

func newTestGateway(t *testing.T, url string) *Gateway {
	t.Helper()
	g, err := NewGateway(GatewayConfig{
		ChatURL:      url + "/v1/chat/completions",
		APIKey:       "k",
		Model:        "m",
		HTTPTimeout:  2 * time.Second,
		MaxRetryTime: 2 * time.Second,
	}, logger.Discard().Entry)
	require.NoError(t, err)
	return g
}

func TestGateway_ChatReadsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var p chatPayload
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&p)) || !assert.Len(t, p.Messages, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "system", p.Messages[0].Role)
		assert.Equal(t, "hello", p.Messages[1].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hi there \n"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestGateway(t, srv.URL).Chat(context.Background(), ChatRequest{System: "be brief", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestGateway_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestGateway(t, srv.URL).Chat(context.Background(), ChatRequest{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGateway_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestGateway(t, srv.URL).Chat(context.Background(), ChatRequest{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGateway_EmbedHonoursIndexes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	vecs, err := newTestGateway(t, srv.URL).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestNewGateway_RequiresKey(t *testing.T) {
	_, err := NewGateway(GatewayConfig{ChatURL: "http://x"}, logger.Discard().Entry)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

type countingEmbedder struct {
	calls  int
	inputs []string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	vecs, err := c.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{2}, {3}, {1}}, vecs)
	assert.Equal(t, []string{"a", "bb", "ccc"}, inner.inputs)
	assert.Equal(t, 2, inner.calls)
}

func TestHashEmbedding_SharedWordsScoreHigher(t *testing.T) {
	dot := func(a, b []float32) float32 {
		var s float32
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}
	q := HashEmbedding("interest rate too high", MockDimensions)
	near := HashEmbedding("the interest rate was high", MockDimensions)
	far := HashEmbedding("property documents pending", MockDimensions)
	assert.Greater(t, dot(q, near), dot(q, far))
	assert.InDelta(t, 1.0, dot(q, q), 1e-5)
}

func TestMock_ClassifyAssignsEveryQuery(t *testing.T) {
	out, err := NewMock().Chat(context.Background(), ChatRequest{Task: TaskClassify, User: `{"queries":["a","b"]}`})
	require.NoError(t, err)
	var got map[string]map[string]string
	require.NoError(t, DecodeJSON(out, &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "Summary", got["a"]["reporting_function"])
}
