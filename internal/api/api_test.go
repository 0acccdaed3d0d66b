package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/evaluation"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/types"
)

type fakePipeline struct {
	asked string
	err   error
}

func (f *fakePipeline) Plan(_ context.Context, q string) (pipeline.Plan, error) {
	if f.err != nil {
		return pipeline.Plan{}, f.err
	}
	routes := types.NewRoutes(types.Route{Query: q, Assignment: types.Assignment{
		Filtering: types.MetadataFiltering, Analysis: types.GeneralAnalysis, Reporting: types.Summary,
	}})
	return pipeline.NewPlan(q, routes, types.Assignment{Reporting: types.Summary}), nil
}

func (f *fakePipeline) Answer(_ context.Context, q string) (pipeline.Result, error) {
	f.asked = q
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	return pipeline.Result{
		Question: q,
		Report:   "12 long calls",
		Variant:  "Summary",
		Counts:   types.ReasonCounts{"eligibility questions": types.Insufficient()},
	}, nil
}

func newServer(p Answerer, ready func(context.Context) error) http.Handler {
	return New(p, ready, time.Second, logger.Discard()).Routes()
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakePipeline{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz_ReportsEmptyStore(t *testing.T) {
	h := newServer(&fakePipeline{}, func(context.Context) error { return errors.New("call_embeddings is empty") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "call_embeddings is empty")
}

func TestAsk_PostBody(t *testing.T) {
	fp := &fakePipeline{}
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"question":"  why are calls long?  "}`)
	newServer(fp, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "why are calls long?", fp.asked)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "12 long calls", got["report"])
	assert.Equal(t, map[string]any{"eligibility questions": "insufficient evidence"}, got["counts"])
}

func TestAsk_QueryParam(t *testing.T) {
	fp := &fakePipeline{}
	rec := httptest.NewRecorder()
	newServer(fp, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask?q=hindi+calls", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hindi calls", fp.asked)
}

func TestAsk_Errors(t *testing.T) {
	cases := []struct {
		name   string
		req    *http.Request
		err    error
		status int
	}{
		{"empty question", httptest.NewRequest(http.MethodGet, "/ask?q=%20", nil), nil, http.StatusBadRequest},
		{"bad body", httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{")), nil, http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodDelete, "/ask?q=x", nil), nil, http.StatusMethodNotAllowed},
		{"pipeline failure", httptest.NewRequest(http.MethodGet, "/ask?q=x", nil), errors.New("llm down"), http.StatusInternalServerError},
		{"timeout", httptest.NewRequest(http.MethodGet, "/ask?q=x", nil), context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newServer(&fakePipeline{err: tc.err}, nil).ServeHTTP(rec, tc.req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestPlan_ReturnsBuckets(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakePipeline{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan?q=hindi+calls", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Filtering map[string][]string `json:"filtering"`
		Variant   string              `json:"variant"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"hindi calls"}, got.Filtering["metadata_filtering"])
	assert.Equal(t, "Summary", got.Variant)
}

type fakeJudge struct {
	question, report string
	err              error
}

func (f *fakeJudge) Evaluate(_ context.Context, question, report string) (evaluation.Report, error) {
	f.question, f.report = question, report
	if f.err != nil {
		return evaluation.Report{}, f.err
	}
	return evaluation.Report{Color: evaluation.Color{Code: "GREEN", Reason: "metric looks good"}}, nil
}

func newJudgedServer(p Answerer, j Evaluator) http.Handler {
	return New(p, nil, time.Second, logger.Discard()).WithEvaluator(j).Routes()
}

func TestAsk_EvaluateAttachesJudgement(t *testing.T) {
	judge := &fakeJudge{}
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"question":"why are calls long?","evaluate":true}`)
	newJudgedServer(&fakePipeline{}, judge).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", body))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "why are calls long?", judge.question)
	assert.Equal(t, "12 long calls", judge.report)
	var got pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Evaluation)
	assert.Equal(t, "GREEN", got.Evaluation.Color.Code)
}

func TestAsk_WithoutEvaluateOmitsJudgement(t *testing.T) {
	judge := &fakeJudge{}
	rec := httptest.NewRecorder()
	newJudgedServer(&fakePipeline{}, judge).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask?q=x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, judge.report)
	assert.NotContains(t, rec.Body.String(), `"evaluation"`)
}

func TestAsk_FailedJudgementKeepsReport(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newJudgedServer(&fakePipeline{}, &fakeJudge{err: errors.New("judge down")})
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask?q=x&evaluate=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "12 long calls", got.Report)
	require.NotNil(t, got.Evaluation)
	assert.Equal(t, "ERROR", got.Evaluation.Color.Code)
	assert.Contains(t, got.Evaluation.Color.Reason, "judge down")
}

func TestAsk_EvaluateNeedsEvaluator(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakePipeline{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask?q=x&evaluate=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate_WithMockProvider(t *testing.T) {
	judge := evaluation.New(llm.NewMock(), nil, 2, logger.Discard().Entry)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"question":"why are calls long?","report":"42% of long calls discussed eligibility."}`)
	newJudgedServer(&fakePipeline{}, judge).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/evaluate", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var got evaluation.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "GREEN", got.Color.Code)
	assert.Len(t, got.Metrics, len(evaluation.DefaultMetrics()))
}

func TestEvaluate_RequestErrors(t *testing.T) {
	cases := []struct {
		name   string
		judge  Evaluator
		req    *http.Request
		status int
	}{
		{"disabled", nil, httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{}`)), http.StatusNotFound},
		{"wrong method", &fakeJudge{}, httptest.NewRequest(http.MethodGet, "/evaluate", nil), http.StatusMethodNotAllowed},
		{"missing report", &fakeJudge{}, httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"question":"q"}`)), http.StatusBadRequest},
		{"judge failure", &fakeJudge{err: errors.New("judge down")}, httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"question":"q","report":"r"}`)), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := New(&fakePipeline{}, nil, time.Second, logger.Discard())
			if tc.judge != nil {
				srv.WithEvaluator(tc.judge)
			}
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, tc.req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
