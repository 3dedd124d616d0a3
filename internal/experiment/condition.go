package experiment

import (
	"fmt"
	"strconv"
	"strings"
)

// Relation is a predicate over a metric value, with a description for logs.
type Relation struct {
	desc string
	fn   func(float64) bool
}

// NewRelation wraps an arbitrary predicate.
func NewRelation(desc string, fn func(float64) bool) Relation {
	return Relation{desc: desc, fn: fn}
}

func (r Relation) Holds(x float64) bool { return r.fn(x) }
func (r Relation) String() string       { return r.desc }

// Not returns the logical complement of r.
func (r Relation) Not() Relation {
	fn := r.fn
	return Relation{desc: "not " + r.desc, fn: func(x float64) bool { return !fn(x) }}
}

func threshold(op string, v float64, fn func(float64) bool) Relation {
	return Relation{desc: op + " " + strconv.FormatFloat(v, 'g', -1, 64), fn: fn}
}

func EqualTo(v float64) Relation {
	return threshold("==", v, func(x float64) bool { return x == v })
}

func NotEqualTo(v float64) Relation {
	return threshold("!=", v, func(x float64) bool { return x != v })
}

func GreaterThan(v float64) Relation {
	return threshold(">", v, func(x float64) bool { return x > v })
}

func LessThan(v float64) Relation {
	return threshold("<", v, func(x float64) bool { return x < v })
}

func GreaterOrEqual(v float64) Relation {
	return threshold(">=", v, func(x float64) bool { return x >= v })
}

func LessOrEqual(v float64) Relation {
	return threshold("<=", v, func(x float64) bool { return x <= v })
}

// ParseRelation builds a threshold relation from an operator as written in
// plan files: ==, !=, >, <, >=, <= or eq, ne, gt, lt, ge, le.
func ParseRelation(op string, v float64) (Relation, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "==", "eq":
		return EqualTo(v), nil
	case "!=", "ne":
		return NotEqualTo(v), nil
	case ">", "gt":
		return GreaterThan(v), nil
	case "<", "lt":
		return LessThan(v), nil
	case ">=", "ge":
		return GreaterOrEqual(v), nil
	case "<=", "le":
		return LessOrEqual(v), nil
	}
	return Relation{}, fmt.Errorf("unknown operator %q", op)
}

// Condition gates a step on a relation over a metric.
type Condition struct {
	metric   *Metric
	relation Relation
}

func NewCondition(metric *Metric, relation Relation) *Condition {
	return &Condition{metric: metric, relation: relation}
}

// Check evaluates the metric now and applies the relation.
func (c *Condition) Check() (bool, error) {
	v, err := c.metric.Value()
	if err != nil {
		return false, err
	}
	return c.relation.Holds(v), nil
}

// Negation returns a new condition over the same metric with the relation
// inverted. c is left unchanged.
func (c *Condition) Negation() *Condition {
	return &Condition{metric: c.metric, relation: c.relation.Not()}
}

func (c *Condition) Metric() *Metric { return c.metric }

func (c *Condition) String() string {
	return c.metric.String() + " " + c.relation.String()
}
