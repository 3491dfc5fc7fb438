package severity

import (
	"fmt"
	"strconv"
	"strings"
)

// Two-char operators first so ">=" never parses as ">".
var condOps = []string{">=", "<=", "==", ">", "<"}

// term is one comparison inside a condition. Boolean terms require the
// metric to be present; numeric terms read a missing metric as 0.
type term struct {
	metric  string
	op      string
	value   float64
	boolean bool
	want    bool
}

func (t term) matches(metrics map[string]float64) bool {
	if t.boolean {
		v, ok := metrics[t.metric]
		if !ok {
			return false
		}
		return (v != 0) == t.want
	}
	v := metrics[t.metric]
	switch t.op {
	case ">":
		return v > t.value
	case "<":
		return v < t.value
	case ">=":
		return v >= t.value
	case "<=":
		return v <= t.value
	case "==":
		return v == t.value
	}
	return false
}

// Condition is a rule condition parsed into terms joined by a single
// connective. A nil Condition never matches.
type Condition struct {
	text  string
	all   bool
	terms []term
}

// ParseCondition parses "metric op number" or "metric == true|false"
// terms joined by "or" or "and". Mixing connectives is rejected.
func ParseCondition(text string) (*Condition, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty condition")
	}

	all := false
	parts := []string{trimmed}
	hasOr := strings.Contains(trimmed, " or ")
	hasAnd := strings.Contains(trimmed, " and ")
	switch {
	case hasOr && hasAnd:
		return nil, fmt.Errorf("condition %q mixes or and and", text)
	case hasOr:
		parts = strings.Split(trimmed, " or ")
	case hasAnd:
		parts = strings.Split(trimmed, " and ")
		all = true
	}

	cond := &Condition{text: trimmed, all: all}
	for _, part := range parts {
		t, err := parseTerm(part)
		if err != nil {
			return nil, err
		}
		cond.terms = append(cond.terms, t)
	}
	return cond, nil
}

func parseTerm(text string) (term, error) {
	text = strings.TrimSpace(text)
	for _, op := range condOps {
		idx := strings.Index(text, op)
		if idx < 0 {
			continue
		}
		metric := strings.TrimSpace(text[:idx])
		rhs := strings.TrimSpace(text[idx+len(op):])
		if metric == "" || strings.ContainsAny(metric, " \t") {
			return term{}, fmt.Errorf("bad metric name in %q", text)
		}
		if op == "==" && (rhs == "true" || rhs == "false") {
			return term{metric: metric, op: op, boolean: true, want: rhs == "true"}, nil
		}
		value, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return term{}, fmt.Errorf("bad value in %q", text)
		}
		return term{metric: metric, op: op, value: value}, nil
	}
	return term{}, fmt.Errorf("no operator in %q", text)
}

// Matches evaluates the condition against a metric map.
func (c *Condition) Matches(metrics map[string]float64) bool {
	if c == nil || len(c.terms) == 0 {
		return false
	}
	for _, t := range c.terms {
		ok := t.matches(metrics)
		if c.all && !ok {
			return false
		}
		if !c.all && ok {
			return true
		}
	}
	return c.all
}

func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.text
}
