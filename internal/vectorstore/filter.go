package vectorstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"call-insights-go/internal/types"
)

// Filter is a structured metadata predicate: either a logical operation over
// Arguments or a single comparison of Attribute against Value.
type Filter struct {
	Operator   string   `json:"operator,omitempty"`
	Arguments  []Filter `json:"arguments,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
	Attribute  string   `json:"attribute,omitempty"`
	Value      any      `json:"value,omitempty"`
}

func And(args ...Filter) Filter { return Filter{Operator: "and", Arguments: args} }
func Or(args ...Filter) Filter  { return Filter{Operator: "or", Arguments: args} }
func Not(arg Filter) Filter     { return Filter{Operator: "not", Arguments: []Filter{arg}} }

// Compare builds a single comparison.
func Compare(attr, cmp string, value any) Filter {
	return Filter{Attribute: attr, Comparator: cmp, Value: value}
}

// Validate checks operators, comparators and arity.
func (f Filter) Validate() error {
	if f.Operator != "" {
		switch f.Operator {
		case "and", "or":
			if len(f.Arguments) == 0 {
				return fmt.Errorf("filter: %s needs arguments", f.Operator)
			}
		case "not":
			if len(f.Arguments) != 1 {
				return fmt.Errorf("filter: not takes exactly one argument")
			}
		default:
			return fmt.Errorf("filter: unknown operator %q", f.Operator)
		}
		for _, a := range f.Arguments {
			if err := a.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if f.Attribute == "" {
		return fmt.Errorf("filter: comparison without attribute")
	}
	switch f.Comparator {
	case "eq", "ne", "gt", "gte", "lt", "lte", "contain", "like":
	case "in", "nin":
		if _, ok := f.Value.([]any); !ok {
			return fmt.Errorf("filter: %s on %q needs a list value", f.Comparator, f.Attribute)
		}
	default:
		return fmt.Errorf("filter: unknown comparator %q", f.Comparator)
	}
	return nil
}

// Match reports whether md satisfies the filter. A comparison on an absent
// attribute never matches.
func (f Filter) Match(md types.Metadata) bool {
	switch f.Operator {
	case "and":
		for _, a := range f.Arguments {
			if !a.Match(md) {
				return false
			}
		}
		return true
	case "or":
		for _, a := range f.Arguments {
			if a.Match(md) {
				return true
			}
		}
		return false
	case "not":
		return len(f.Arguments) == 1 && !f.Arguments[0].Match(md)
	}

	got, ok := md[f.Attribute]
	if !ok || got == nil {
		return false
	}
	switch f.Comparator {
	case "eq":
		return equal(got, f.Value)
	case "ne":
		return !equal(got, f.Value)
	case "gt":
		c, ok := compare(got, f.Value)
		return ok && c > 0
	case "gte":
		c, ok := compare(got, f.Value)
		return ok && c >= 0
	case "lt":
		c, ok := compare(got, f.Value)
		return ok && c < 0
	case "lte":
		c, ok := compare(got, f.Value)
		return ok && c <= 0
	case "in", "nin":
		list, _ := f.Value.([]any)
		found := false
		for _, v := range list {
			if equal(got, v) {
				found = true
				break
			}
		}
		return found == (f.Comparator == "in")
	case "contain", "like":
		needle := strings.Trim(fmt.Sprint(f.Value), "%")
		return strings.Contains(strings.ToLower(fmt.Sprint(got)), strings.ToLower(needle))
	}
	return false
}

func toFloat(v any) (float64, bool) {
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
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	if ab, ok := a.(bool); ok {
		switch bt := b.(type) {
		case bool:
			return ab == bt
		case string:
			bb, err := strconv.ParseBool(bt)
			return err == nil && ab == bb
		}
		return false
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(a)), strings.TrimSpace(fmt.Sprint(b)))
}

// compare orders numbers numerically and everything else as strings, which
// keeps ISO-8601 timestamps in chronological order.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}
