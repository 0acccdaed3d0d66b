// Package pipeline answers a question end to end: route, filter, retrieve,
// analyse, count evidence and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"call-insights-go/internal/aggregator"
	"call-insights-go/internal/evaluation"
	"call-insights-go/internal/types"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

type Router interface {
	Route(ctx context.Context, question string) (types.Routes, error)
	Assign(ctx context.Context, question string) (types.Assignment, error)
}

type MetadataFilter interface {
	RetrieveCandidates(ctx context.Context, queries []string) (types.IDSet, map[string]string, error)
}

type TranscriptRetriever interface {
	Retrieve(ctx context.Context, queries []string, candidates types.IDSet) (map[string]string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, mode types.AnalysisStage, query, transcripts string) (string, error)
}

type EvidenceCounter interface {
	Count(ctx context.Context, analysis string) (types.ReasonCounts, error)
}

type Reporter interface {
	Report(ctx context.Context, variant types.ReportingStage, question, analysis string, counts types.ReasonCounts, total int) (string, error)
}

// Deps are the stage implementations.
type Deps struct {
	Router    Router
	Filter    MetadataFilter
	Retriever TranscriptRetriever
	Analyzer  Analyzer
	Counter   EvidenceCounter
	Reporter  Reporter
}

type Pipeline struct {
	deps        Deps
	total       int
	concurrency int
	log         *logrus.Entry
}

// New builds a pipeline reporting total as the number of transcripts analysed.
func New(deps Deps, total, concurrency int, log *logrus.Entry) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{deps: deps, total: total, concurrency: concurrency, log: log.WithField("component", "pipeline")}
}

// Result is one answered question.
type Result struct {
	Question   string             `json:"question"`
	Report     string             `json:"report"`
	Variant    string             `json:"variant"`
	Plan       Plan               `json:"plan"`
	Counts     types.ReasonCounts `json:"counts"`
	Candidates []string           `json:"candidates"`
	Duration   time.Duration      `json:"-"`
	DurationMs int64              `json:"duration_ms"`
	// Evaluation is only set when the caller asks for the report to be judged.
	Evaluation *evaluation.Report `json:"evaluation,omitempty"`
}

// Plan routes the question without running any stage.
func (p *Pipeline) Plan(ctx context.Context, question string) (Plan, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Plan{}, ErrEmptyQuestion
	}
	routes, err := p.deps.Router.Route(ctx, question)
	if err != nil {
		return Plan{}, fmt.Errorf("route: %w", err)
	}
	self, err := p.deps.Router.Assign(ctx, question)
	if err != nil {
		return Plan{}, fmt.Errorf("assign: %w", err)
	}
	plan := NewPlan(question, routes, self)
	if plan.Disagreement {
		p.log.WithFields(logrus.Fields{
			"question": question,
			"variant":  plan.Variant.String(),
		}).Warn("router gave the question a different reporting stage as a sub-query; using its own assignment")
	}
	return plan, nil
}

// Answer plans and executes question.
func (p *Pipeline) Answer(ctx context.Context, question string) (Result, error) {
	plan, err := p.Plan(ctx, question)
	if err != nil {
		return Result{}, err
	}
	return p.Execute(ctx, plan)
}

// Execute runs plan. Any stage failure aborts the run without a report.
func (p *Pipeline) Execute(ctx context.Context, plan Plan) (Result, error) {
	start := time.Now()
	log := p.log.WithField("question", plan.Question)
	log.WithFields(logrus.Fields{
		"routes":     len(plan.Routes),
		"metadata":   len(plan.Filtering[types.MetadataFiltering]),
		"transcript": len(plan.Filtering[types.TranscriptFiltering]),
		"variant":    plan.Variant.String(),
	}).Info("pipeline started")

	candidates := types.NewIDSet()
	var summaries map[string]string
	if qs := plan.Filtering[types.MetadataFiltering]; len(qs) > 0 {
		var err error
		candidates, summaries, err = p.deps.Filter.RetrieveCandidates(ctx, qs)
		if err != nil {
			return Result{}, err
		}
	}

	var bundles map[string]string
	if qs := plan.Filtering[types.TranscriptFiltering]; len(qs) > 0 {
		var err error
		bundles, err = p.deps.Retriever.Retrieve(ctx, qs, candidates)
		if err != nil {
			return Result{}, err
		}
	}

	contribs, err := p.analyse(ctx, plan, bundles)
	if err != nil {
		return Result{}, err
	}

	// empty unless a route escapes every analysis bucket; see NewPlan
	leftovers := make([]string, 0, len(plan.SummaryQueries))
	for _, q := range plan.SummaryQueries {
		leftovers = append(leftovers, summaries[q])
	}
	insight := aggregator.Fold(contribs, leftovers)

	report, err := p.deps.Reporter.Report(ctx, plan.Variant, plan.Question, insight.Analysis, insight.Counts, p.total)
	if err != nil {
		return Result{}, err
	}

	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"reasons":     len(insight.Counts),
		"duration_ms": elapsed.Milliseconds(),
	}).Info("pipeline finished")
	return Result{
		Question:   plan.Question,
		Report:     report,
		Variant:    plan.Variant.String(),
		Plan:       plan,
		Counts:     insight.Counts,
		Candidates: candidates.Sorted(),
		Duration:   elapsed,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

// analyse runs analysis and evidence counting per query, general bucket
// first. Queries run concurrently; results keep bucket order.
func (p *Pipeline) analyse(ctx context.Context, plan Plan, bundles map[string]string) ([]aggregator.Contribution, error) {
	type job struct {
		stage types.AnalysisStage
		query string
	}
	var jobs []job
	for _, stage := range types.AnalysisStages {
		for _, q := range plan.Analysis[stage] {
			jobs = append(jobs, job{stage, q})
		}
	}

	out := make([]aggregator.Contribution, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			// a query without a bundle is analysed on empty text
			text, err := p.deps.Analyzer.Analyze(gctx, j.stage, j.query, bundles[j.query])
			if err != nil {
				return fmt.Errorf("analyse %q: %w", j.query, err)
			}
			counts, err := p.deps.Counter.Count(gctx, text)
			if err != nil {
				return err
			}
			out[i] = aggregator.Contribution{Query: j.query, Stage: j.stage, Text: text, Counts: counts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
