package models

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind is the logical type of a parameter value.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindInt    ValueKind = "int"
	ValueKindFloat  ValueKind = "float"
	ValueKindBool   ValueKind = "bool"
)

// Value is a typed parameter value. It keeps the literal text it was built
// from so that rendering reproduces exactly what the sweep author wrote
// (e.g. "0.003" stays "0.003", not "3e-03").
type Value struct {
	kind ValueKind
	text string
}

// String builds a string-valued parameter.
func String(s string) Value {
	return Value{kind: ValueKindString, text: s}
}

// Int builds an integer-valued parameter.
func Int(i int64) Value {
	return Value{kind: ValueKindInt, text: strconv.FormatInt(i, 10)}
}

// Float builds a float-valued parameter.
func Float(f float64) Value {
	return Value{kind: ValueKindFloat, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Bool builds a boolean parameter. Booleans render as 0/1, which is what the
// simulation's config parser expects.
func Bool(b bool) Value {
	if b {
		return Value{kind: ValueKindBool, text: "1"}
	}
	return Value{kind: ValueKindBool, text: "0"}
}

// Kind returns the logical type of v.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return ValueKindString
	}
	return v.kind
}

// String renders v for the command line.
func (v Value) String() string {
	return v.text
}

// UnmarshalYAML decodes a scalar node, using its resolved tag to pick the
// logical type.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: parameter value must be a scalar", node.Line)
	}

	switch node.ShortTag() {
	case "!!int":
		if _, err := strconv.ParseInt(node.Value, 0, 64); err != nil {
			return fmt.Errorf("line %d: invalid int %q: %w", node.Line, node.Value, err)
		}
		*v = Value{kind: ValueKindInt, text: node.Value}
	case "!!float":
		if _, err := strconv.ParseFloat(node.Value, 64); err != nil {
			return fmt.Errorf("line %d: invalid float %q: %w", node.Line, node.Value, err)
		}
		*v = Value{kind: ValueKindFloat, text: node.Value}
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: invalid bool %q: %w", node.Line, node.Value, err)
		}
		*v = Bool(b)
	default:
		*v = String(node.Value)
	}
	return nil
}
