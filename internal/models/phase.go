package models

import "fmt"

// Phase is one of the two sequential simulation stages of a condition.
type Phase int

const (
	Phase1 Phase = 1
	Phase2 Phase = 2
)

// Phases lists the phases in the order their scripts are emitted.
var Phases = []Phase{Phase1, Phase2}

// Label returns the short label used in file and job names ("P1", "P2").
func (p Phase) Label() string {
	return fmt.Sprintf("P%d", int(p))
}

// Active is the value of the phase-activation flag for p: false for phase 1,
// true for phase 2.
func (p Phase) Active() Value {
	return Bool(p == Phase2)
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return p.Label()
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == Phase1 || p == Phase2
}
