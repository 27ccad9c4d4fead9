package models

import (
	"fmt"
	"strings"
)

// VerbatimMarker flags an axis whose value is appended to the argument string
// as raw flag text instead of being rendered as "-NAME VALUE".
const VerbatimMarker = "__COPY_OVER"

// Assignment is one axis's selected value within a condition.
type Assignment struct {
	Axis  string `json:"axis" yaml:"axis"`
	Value string `json:"value" yaml:"value"`
}

// Verbatim reports whether the assignment is a verbatim append.
func (a Assignment) Verbatim() bool {
	return IsVerbatim(a.Axis)
}

// IsVerbatim reports whether an axis name carries the verbatim marker.
func IsVerbatim(axis string) bool {
	return strings.Contains(axis, VerbatimMarker)
}

// Condition is one combination across all registered axes. Assignments are
// kept in axis registration order.
type Condition struct {
	Index       int          `json:"index" yaml:"index"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// Name is the condition's label used in job names, e.g. "C3".
func (c Condition) Name() string {
	return fmt.Sprintf("C%d", c.Index)
}

// Params returns the non-verbatim assignments as a parameter set.
func (c Condition) Params() Params {
	p := make(Params, len(c.Assignments))
	for _, a := range c.Assignments {
		if a.Verbatim() {
			continue
		}
		p[a.Axis] = String(a.Value)
	}
	return p
}

// Verbatim returns the verbatim-append values in axis registration order.
func (c Condition) Verbatim() []string {
	var out []string
	for _, a := range c.Assignments {
		if a.Verbatim() {
			out = append(out, a.Value)
		}
	}
	return out
}

// Value returns the value assigned to axis, if any.
func (c Condition) Value(axis string) (string, bool) {
	for _, a := range c.Assignments {
		if a.Axis == axis {
			return a.Value, true
		}
	}
	return "", false
}
