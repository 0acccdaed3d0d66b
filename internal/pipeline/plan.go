package pipeline

import "call-insights-go/internal/types"

// Plan is everything decided before any stage runs.
type Plan struct {
	Question string           `json:"question"`
	Routes   types.Routes     `json:"routes"`
	Self     types.Assignment `json:"question_assignment"`

	Filtering map[types.FilteringStage][]string `json:"filtering"`
	Analysis  map[types.AnalysisStage][]string  `json:"analysis"`
	Reporting map[types.ReportingStage][]string `json:"reporting"`

	// SummaryQueries are metadata-filtered queries no analysis bucket
	// consumes; their statistics go into the report as they are.
	SummaryQueries []string `json:"summary_queries"`

	// Variant is the question's own reporting stage.
	Variant types.ReportingStage `json:"variant"`
	// Disagreement is set when the question is also a sub-query but was
	// given a different reporting stage there.
	Disagreement bool `json:"disagreement,omitempty"`
}

// NewPlan buckets routes by each stage and fixes the report variant.
func NewPlan(question string, routes types.Routes, self types.Assignment) Plan {
	p := Plan{
		Question:  question,
		Routes:    routes,
		Self:      self,
		Filtering: make(map[types.FilteringStage][]string),
		Analysis:  make(map[types.AnalysisStage][]string),
		Reporting: make(map[types.ReportingStage][]string),
		Variant:   self.Reporting,
	}
	for _, r := range routes {
		p.Filtering[r.Filtering] = append(p.Filtering[r.Filtering], r.Query)
		p.Analysis[r.Analysis] = append(p.Analysis[r.Analysis], r.Query)
		p.Reporting[r.Reporting] = append(p.Reporting[r.Reporting], r.Query)
	}

	// Every route carries an analysis stage, so this difference is always
	// empty with the current enum.
	analysed := make(map[string]bool, len(routes))
	for _, stage := range types.AnalysisStages {
		for _, q := range p.Analysis[stage] {
			analysed[q] = true
		}
	}
	for _, q := range p.Filtering[types.MetadataFiltering] {
		if !analysed[q] {
			p.SummaryQueries = append(p.SummaryQueries, q)
		}
	}

	if r, ok := routes.Lookup(question); ok && r.Reporting != self.Reporting {
		p.Disagreement = true
	}
	return p
}
