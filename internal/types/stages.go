package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStage is returned when a stage name is outside its enumeration.
var ErrUnknownStage = errors.New("unknown stage name")

// FilteringStage selects which store narrows the records for a sub-query.
type FilteringStage int

const (
	FilteringNone FilteringStage = iota
	MetadataFiltering
	TranscriptFiltering
)

var FilteringStages = []FilteringStage{MetadataFiltering, TranscriptFiltering, FilteringNone}

func (s FilteringStage) String() string {
	switch s {
	case MetadataFiltering:
		return "metadata_filtering"
	case TranscriptFiltering:
		return "transcript_filtering"
	case FilteringNone:
		return "none"
	}
	return fmt.Sprintf("FilteringStage(%d)", int(s))
}

func ParseFilteringStage(name string) (FilteringStage, error) {
	switch strings.TrimSpace(name) {
	case "metadata_filtering":
		return MetadataFiltering, nil
	case "transcript_filtering":
		return TranscriptFiltering, nil
	case "none":
		return FilteringNone, nil
	}
	return 0, fmt.Errorf("filtering_function %q: %w", name, ErrUnknownStage)
}

func (s FilteringStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *FilteringStage) UnmarshalText(b []byte) error {
	v, err := ParseFilteringStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AnalysisStage selects the analysis prompt for a sub-query.
type AnalysisStage int

const (
	GeneralAnalysis AnalysisStage = iota
	DetailedAnalysis
)

// AnalysisStages is the order the orchestrator folds analysis buckets in.
var AnalysisStages = []AnalysisStage{GeneralAnalysis, DetailedAnalysis}

func (s AnalysisStage) String() string {
	switch s {
	case GeneralAnalysis:
		return "general_analysis"
	case DetailedAnalysis:
		return "detailed_analysis"
	}
	return fmt.Sprintf("AnalysisStage(%d)", int(s))
}

func ParseAnalysisStage(name string) (AnalysisStage, error) {
	switch strings.TrimSpace(name) {
	case "general_analysis":
		return GeneralAnalysis, nil
	case "detailed_analysis":
		return DetailedAnalysis, nil
	}
	return 0, fmt.Errorf("analysis_function %q: %w", name, ErrUnknownStage)
}

func (s AnalysisStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *AnalysisStage) UnmarshalText(b []byte) error {
	v, err := ParseAnalysisStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ReportingStage selects the shape of the final report.
type ReportingStage int

const (
	Summary ReportingStage = iota
	Pointers
)

var ReportingStages = []ReportingStage{Summary, Pointers}

func (s ReportingStage) String() string {
	switch s {
	case Summary:
		return "Summary"
	case Pointers:
		return "Pointers"
	}
	return fmt.Sprintf("ReportingStage(%d)", int(s))
}

func ParseReportingStage(name string) (ReportingStage, error) {
	switch strings.TrimSpace(name) {
	case "Summary":
		return Summary, nil
	case "Pointers":
		return Pointers, nil
	}
	return 0, fmt.Errorf("reporting_function %q: %w", name, ErrUnknownStage)
}

func (s ReportingStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ReportingStage) UnmarshalText(b []byte) error {
	v, err := ParseReportingStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Assignment is the stage triple the router gives one query.
type Assignment struct {
	Filtering FilteringStage `json:"filtering_function"`
	Analysis  AnalysisStage  `json:"analysis_function"`
	Reporting ReportingStage `json:"reporting_function"`
}

// Route binds a sub-query to its assignment.
type Route struct {
	Query string `json:"query"`
	Assignment
}

// Routes is an ordered list of routes with unique query text.
type Routes []Route

// NewRoutes drops blank queries and repeated query text, keeping the first occurrence.
func NewRoutes(in ...Route) Routes {
	seen := make(map[string]bool, len(in))
	out := make(Routes, 0, len(in))
	for _, r := range in {
		q := strings.TrimSpace(r.Query)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		r.Query = q
		out = append(out, r)
	}
	return out
}

// Lookup finds the route for a query.
func (rs Routes) Lookup(query string) (Route, bool) {
	for _, r := range rs {
		if r.Query == query {
			return r, true
		}
	}
	return Route{}, false
}

func (rs Routes) Queries() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Query
	}
	return out
}
