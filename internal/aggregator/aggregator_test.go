package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"call-insights-go/internal/types"
)

func TestFold_DetailedOverridesGeneral(t *testing.T) {
	contribs := []Contribution{
		{Query: "d", Stage: types.DetailedAnalysis, Text: "detailed", Counts: types.ReasonCounts{
			"rate": types.Counted(9),
		}},
		{Query: "g1", Stage: types.GeneralAnalysis, Text: "general one", Counts: types.ReasonCounts{
			"rate": types.Counted(2), "docs": types.Insufficient(),
		}},
		{Query: "g2", Stage: types.GeneralAnalysis, Text: "", Counts: types.ReasonCounts{
			"docs": types.Counted(4),
		}},
	}

	got := Fold(contribs, []string{"", "summary for m"})
	assert.Equal(t, "detailed\n\ngeneral one\n\nsummary for m", got.Analysis)
	assert.Equal(t, types.ReasonCounts{
		"rate": types.Counted(9),
		"docs": types.Counted(4),
	}, got.Counts)
}

func TestFold_Empty(t *testing.T) {
	got := Fold(nil, nil)
	assert.Equal(t, "", got.Analysis)
	assert.Empty(t, got.Counts)
}
