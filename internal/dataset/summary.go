package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"call-insights-go/internal/types"
)

// statRows are the rows of a describe table, in print order.
var statRows = []string{"count", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

type column struct {
	name  string
	stats map[string]string
}

// Describe renders descriptive statistics of the given metadata rows, one
// column per attribute. Numeric columns get count, mean, std, min,
// quartiles and max; other columns get count, unique, top and freq. Cells
// that do not apply print NaN. An empty input gives "".
func Describe(rows []types.Metadata) string {
	if len(rows) == 0 {
		return ""
	}
	var cols []column
	for _, name := range columnOrder(rows) {
		var values []any
		for _, r := range rows {
			if v, ok := r[name]; ok && v != nil {
				values = append(values, v)
			}
		}
		cols = append(cols, describeColumn(name, values))
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t")
	for _, c := range cols {
		fmt.Fprintf(w, "%s\t", c.name)
	}
	fmt.Fprintln(w)
	for _, stat := range statRows {
		fmt.Fprintf(w, "%s\t", stat)
		for _, c := range cols {
			v, ok := c.stats[stat]
			if !ok {
				v = "NaN"
			}
			fmt.Fprintf(w, "%s\t", v)
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
	return buf.String()
}

// columnOrder lists catalogue attributes first, then any other keys sorted.
func columnOrder(rows []types.Metadata) []string {
	present := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	var out []string
	for _, a := range Attributes {
		if present[a.Key] {
			out = append(out, a.Key)
			delete(present, a.Key)
		}
	}
	var rest []string
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func describeColumn(name string, values []any) column {
	c := column{name: name, stats: map[string]string{"count": strconv.Itoa(len(values))}}
	if len(values) == 0 {
		return c
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := number(v)
		if !ok {
			nums = nil
			break
		}
		nums = append(nums, f)
	}
	if nums != nil {
		sort.Float64s(nums)
		c.stats["mean"] = formatFloat(mean(nums))
		c.stats["std"] = formatFloat(stddev(nums))
		c.stats["min"] = formatFloat(nums[0])
		c.stats["25%"] = formatFloat(quantile(nums, 0.25))
		c.stats["50%"] = formatFloat(quantile(nums, 0.50))
		c.stats["75%"] = formatFloat(quantile(nums, 0.75))
		c.stats["max"] = formatFloat(nums[len(nums)-1])
		return c
	}

	freq := map[string]int{}
	var order []string
	for _, v := range values {
		s := fmt.Sprint(v)
		if freq[s] == 0 {
			order = append(order, s)
		}
		freq[s]++
	}
	top := order[0]
	for _, s := range order[1:] {
		if freq[s] > freq[top] {
			top = s
		}
	}
	c.stats["unique"] = strconv.Itoa(len(freq))
	c.stats["top"] = top
	c.stats["freq"] = strconv.Itoa(freq[top])
	return c
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stddev is the sample standard deviation; a single value gives NaN.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// quantile interpolates linearly between the closest ranks of sorted xs.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}
