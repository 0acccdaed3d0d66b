package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

type echoChat struct{ last llm.ChatRequest }

func (e *echoChat) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	e.last = req
	return "analysis of: " + req.User, nil
}

func TestAnalyze_DetailedAsksForNumberedReasons(t *testing.T) {
	chat := &echoChat{}
	a := New(chat, "loan sales calls", logger.Discard().Entry)

	out, err := a.Analyze(context.Background(), types.DetailedAnalysis, "why no sale?", "Agent: hi")
	require.NoError(t, err)
	assert.Contains(t, out, "why no sale?")
	assert.Equal(t, llm.TaskAnalysis, chat.last.Task)
	assert.Contains(t, chat.last.System, "numbered format")
	assert.Contains(t, chat.last.System, "loan sales calls")
	assert.Contains(t, chat.last.User, "Reasons/Key Points:")
	assert.Contains(t, chat.last.User, "Agent: hi")
}

func TestBuildPrompt_GeneralIsBrief(t *testing.T) {
	system, user, err := BuildPrompt(types.GeneralAnalysis, "d", "q", "t")
	require.NoError(t, err)
	assert.Contains(t, system, "brief answer in a summary")
	assert.NotContains(t, user, "Reasons/Key Points")
}

func TestBuildPrompt_UnknownMode(t *testing.T) {
	_, _, err := BuildPrompt(types.AnalysisStage(42), "d", "q", "t")
	assert.ErrorIs(t, err, types.ErrUnknownStage)
}
