// Package evidence extracts numbered reasons from analysis text and counts
// how many stored calls corroborate each one.
package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/types"
	"call-insights-go/internal/vectorstore"
)

// epsilon absorbs float drift when comparing scores and thresholds.
const epsilon = 1e-9

// Searcher runs a similarity search.
type Searcher interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) ([]types.Hit, error)
}

// Thresholds controls the similarity backoff.
type Thresholds struct {
	Initial float64
	Floor   float64
	Step    float64
	Limit   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{Initial: 0.8, Floor: 0.4, Step: 0.1, Limit: 300}
}

// Levels lists the thresholds tried for one reason, highest first.
func (t Thresholds) Levels() []float64 {
	if t.Step <= 0 {
		return []float64{t.Initial}
	}
	var out []float64
	for i := 0; ; i++ {
		th := t.Initial - float64(i)*t.Step
		if th < t.Floor-epsilon {
			break
		}
		out = append(out, th)
	}
	return out
}

type Counter struct {
	store Searcher
	th    Thresholds
	log   *logrus.Entry
}

func NewCounter(store Searcher, th Thresholds, log *logrus.Entry) *Counter {
	return &Counter{store: store, th: th, log: log.WithField("component", "evidence")}
}

// ParseReasons returns the numbered items of text in order. A line counts
// when its first token, minus trailing periods, is all digits; the reason is
// what follows the first ". ".
func ParseReasons(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		fields := strings.Fields(line)
		if len(fields) == 0 || !isDigits(strings.TrimRight(fields[0], ".")) {
			continue
		}
		_, reason, ok := strings.Cut(line, ". ")
		if !ok {
			continue
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			out = append(out, reason)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Count resolves every reason in analysis. Text without reasons gives an
// empty map.
func (c *Counter) Count(ctx context.Context, analysis string) (types.ReasonCounts, error) {
	out := types.ReasonCounts{}
	for _, reason := range ParseReasons(analysis) {
		rc, err := c.resolve(ctx, reason)
		if err != nil {
			return nil, err
		}
		out[reason] = rc
	}
	return out, nil
}

// resolve keeps the count at the first threshold with any hit at or above it.
func (c *Counter) resolve(ctx context.Context, reason string) (types.ReasonCount, error) {
	for _, th := range c.th.Levels() {
		hits, err := c.store.Search(ctx, vectorstore.SearchRequest{
			Text:     reason,
			Mode:     vectorstore.ModeSimilarity,
			Limit:    c.th.Limit,
			MinScore: th - epsilon,
		})
		if err != nil {
			return types.ReasonCount{}, fmt.Errorf("count evidence for %q: %w", reason, err)
		}
		n := 0
		for _, h := range hits {
			if h.Score >= th-epsilon {
				n++
			}
		}
		if n > 0 {
			c.log.WithFields(logrus.Fields{"reason": reason, "threshold": th, "count": n}).Debug("evidence found")
			return types.Counted(n), nil
		}
	}
	c.log.WithField("reason", reason).Debug("insufficient evidence")
	return types.Insufficient(), nil
}
