// Package sweep expands a set of registered axes into the ordered list of
// conditions a parameter sweep will run.
//
// Ordering rule: axes nest in registration order, outermost first. The first
// registered axis varies slowest and the last registered axis varies fastest;
// within an axis, values are visited in the order they were added. Condition
// indices are assigned in that order starting from zero.
package sweep

import (
	"errors"
	"fmt"

	"github.com/nvandessel/sweep/internal/models"
)

var (
	// ErrNoAxes is returned when Expand is called with nothing registered.
	ErrNoAxes = errors.New("no axes registered")

	// ErrEmptyAxis is returned when a registered axis has no values.
	ErrEmptyAxis = errors.New("axis has no values")
)

// ConfigurationError reports a fatal misconfiguration of the sweep or of the
// generation options. It is never retried.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Axis is a named variable with an ordered list of candidate values.
type Axis struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Verbatim reports whether the axis value is appended verbatim to the
// argument string.
func (a Axis) Verbatim() bool {
	return models.IsVerbatim(a.Name)
}

// Expander collects axes and enumerates their Cartesian product.
type Expander struct {
	axes  []Axis
	index map[string]int
}

// NewExpander returns an Expander with the given axes registered in order.
func NewExpander(axes ...Axis) *Expander {
	e := &Expander{index: make(map[string]int)}
	for _, a := range axes {
		e.Register(a.Name, a.Values...)
	}
	return e
}

// Register adds an axis, or appends values to it if the name is already
// registered. Registration order of first appearance is preserved.
func (e *Expander) Register(name string, values ...string) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[name]; ok {
		e.axes[i].Values = append(e.axes[i].Values, values...)
		return
	}
	e.index[name] = len(e.axes)
	e.axes = append(e.axes, Axis{Name: name, Values: append([]string(nil), values...)})
}

// Axes returns a copy of the registered axes in registration order.
func (e *Expander) Axes() []Axis {
	out := make([]Axis, len(e.axes))
	for i, a := range e.axes {
		out[i] = Axis{Name: a.Name, Values: append([]string(nil), a.Values...)}
	}
	return out
}

// Count returns the number of conditions Expand would produce, or 0 if the
// registry is invalid.
func (e *Expander) Count() int {
	if len(e.axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range e.axes {
		n *= len(a.Values)
	}
	return n
}

// Validate checks that at least one axis is registered and none is empty.
func (e *Expander) Validate() error {
	if len(e.axes) == 0 {
		return &ConfigurationError{Err: ErrNoAxes}
	}
	for _, a := range e.axes {
		if len(a.Values) == 0 {
			return &ConfigurationError{Field: a.Name, Err: ErrEmptyAxis}
		}
	}
	return nil
}

// Expand returns every combination of axis values as a Condition.
func (e *Expander) Expand() ([]models.Condition, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	total := e.Count()
	conditions := make([]models.Condition, 0, total)

	// Odometer over the axes: the last axis is the fastest digit.
	digits := make([]int, len(e.axes))
	for i := 0; i < total; i++ {
		assignments := make([]models.Assignment, len(e.axes))
		for a, axis := range e.axes {
			assignments[a] = models.Assignment{Axis: axis.Name, Value: axis.Values[digits[a]]}
		}
		conditions = append(conditions, models.Condition{Index: i, Assignments: assignments})

		for a := len(digits) - 1; a >= 0; a-- {
			digits[a]++
			if digits[a] < len(e.axes[a].Values) {
				break
			}
			digits[a] = 0
		}
	}

	return conditions, nil
}
