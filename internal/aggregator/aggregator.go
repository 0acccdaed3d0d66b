package aggregator

import (
	"strings"

	"call-insights-go/internal/types"
)

// Contribution is what analysing one sub-query adds to the answer.
type Contribution struct {
	Query  string              `json:"query"`
	Stage  types.AnalysisStage `json:"stage"`
	Text   string              `json:"text"`
	Counts types.ReasonCounts  `json:"counts"`
}

// Insight is the folded input of the final report.
type Insight struct {
	Analysis string             `json:"analysis"`
	Counts   types.ReasonCounts `json:"counts"`
}

const separator = "\n\n"

// Fold combines contributions and leftover metadata summaries. Text keeps
// contribution order followed by the summaries. Counts are merged stage by
// stage in AnalysisStages order, so a later stage wins a shared reason;
// within a stage the later contribution wins.
func Fold(contribs []Contribution, summaries []string) Insight {
	var parts []string
	for _, c := range contribs {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	for _, s := range summaries {
		if s != "" {
			parts = append(parts, s)
		}
	}

	counts := types.ReasonCounts{}
	for _, stage := range types.AnalysisStages {
		for _, c := range contribs {
			if c.Stage != stage {
				continue
			}
			for reason, rc := range c.Counts {
				counts[reason] = rc
			}
		}
	}
	return Insight{Analysis: strings.Join(parts, separator), Counts: counts}
}
