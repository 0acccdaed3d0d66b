package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
)

// scriptedJudge answers by metric name found in the system prompt.
type scriptedJudge struct {
	mu      sync.Mutex
	answers map[string]string
	users   map[string]string
}

func (s *scriptedJudge) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, answer := range s.answers {
		if strings.Contains(req.System, `"`+name+`"`) {
			if s.users == nil {
				s.users = map[string]string{}
			}
			s.users[name] = req.User
			return answer, nil
		}
	}
	return "", errors.New("no scripted answer")
}

func TestEvaluate_MockProviderIsGreen(t *testing.T) {
	j := New(llm.NewMock(), nil, 3, logger.Discard().Entry)
	rep, err := j.Evaluate(context.Background(), "why are calls long?", "42% of long calls discussed eligibility.")
	require.NoError(t, err)

	assert.Equal(t, Color{Code: "GREEN", Reason: "metric looks good"}, rep.Color)
	require.Len(t, rep.Metrics, len(DefaultMetrics()))
	for key, s := range rep.Metrics {
		assert.True(t, s.Passed, key)
		assert.Equal(t, "offline mock judgement", s.Reason)
	}
}

func TestEvaluate_QuestionOnlyForInputMetrics(t *testing.T) {
	metrics := []Metric{
		{Key: "relevance", Name: "Relevance", WithQuestion: true, Tier: Red, Pass: atLeast(0.3)},
		{Key: "readability", Name: "Readability", Tier: Amber, Pass: atLeast(0.1)},
	}
	chat := &scriptedJudge{answers: map[string]string{
		"Relevance":   "```json\n{\"score\": 0.9, \"reason\": \"on topic\"}\n```",
		"Readability": `{"score": 0.05, "reason": "dense"}`,
	}}
	rep, err := New(chat, metrics, 1, logger.Discard().Entry).Evaluate(context.Background(), "the question", "the report")
	require.NoError(t, err)

	assert.Contains(t, chat.users["Relevance"], "Input:\nthe question")
	assert.NotContains(t, chat.users["Readability"], "the question")
	assert.Contains(t, chat.users["Readability"], "Actual Output:\nthe report")

	assert.Equal(t, Score{Score: 0.9, Passed: true, Reason: "on topic"}, rep.Metrics["relevance"])
	assert.False(t, rep.Metrics["readability"].Passed)
	assert.Equal(t, Color{Code: "AMBER", Reason: "readability"}, rep.Color)
}

func TestEvaluate_RejectsMissingOrOutOfRangeScore(t *testing.T) {
	for _, answer := range []string{`{"reason": "no score"}`, `{"score": 7, "reason": "scale of ten"}`} {
		chat := &scriptedJudge{answers: map[string]string{"Relevance": answer}}
		metrics := []Metric{{Key: "relevance", Name: "Relevance", Tier: Red, Pass: atLeast(0.3)}}
		_, err := New(chat, metrics, 1, logger.Discard().Entry).Evaluate(context.Background(), "q", "r")
		assert.ErrorIs(t, err, ErrBadScore, answer)
	}
}

func TestEvaluate_JudgeFailureFailsEvaluation(t *testing.T) {
	chat := &scriptedJudge{answers: map[string]string{}}
	_, err := New(chat, nil, 2, logger.Discard().Entry).Evaluate(context.Background(), "q", "r")
	assert.Error(t, err)
}

func TestVerdict_RedBeatsAmber(t *testing.T) {
	metrics := DefaultMetrics()
	scores := map[string]Score{}
	for _, m := range metrics {
		scores[m.Key] = Score{Passed: true}
	}
	scores["completeness"] = Score{Passed: false}
	assert.Equal(t, Color{Code: "AMBER", Reason: "completeness"}, Verdict(metrics, scores))

	scores["data_backed"] = Score{Passed: false}
	scores["privacy_not_aware"] = Score{Passed: false}
	assert.Equal(t, Color{Code: "RED", Reason: "data_backed, privacy_not_aware"}, Verdict(metrics, scores))
}

func TestDefaultMetrics_Thresholds(t *testing.T) {
	byKey := map[string]Metric{}
	for _, m := range DefaultMetrics() {
		byKey[m.Key] = m
	}
	assert.True(t, byKey["relevance"].Pass(0.3))
	assert.False(t, byKey["relevance"].Pass(0.29))
	assert.True(t, byKey["privacy_not_aware"].Pass(0.4))
	assert.False(t, byKey["privacy_not_aware"].Pass(0.41))
	assert.False(t, byKey["unbiased"].Pass(0.5))
	assert.True(t, byKey["unbiased"].Pass(0.51))
	assert.True(t, byKey["readability"].Pass(0.1))
}

func TestFailed(t *testing.T) {
	rep := Failed(errors.New("gateway client error 401"))
	assert.Equal(t, "ERROR", rep.Color.Code)
	assert.Equal(t, "gateway client error 401", rep.Color.Reason)
	assert.Empty(t, rep.Metrics)
}
