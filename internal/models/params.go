package models

import (
	"sort"
	"strings"
)

// Params is a parameter set: parameter name to typed value. Names are unique
// by construction; values become strings only when rendered.
type Params map[string]Value

// Clone returns a shallow copy of p that can be modified independently.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into p, overriding existing names.
func (p Params) Merge(other Params) {
	for k, v := range other {
		p[k] = v
	}
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flags renders p as "-NAME VALUE" tokens sorted by name.
func (p Params) Flags() []string {
	names := p.Names()
	flags := make([]string, 0, len(names))
	for _, name := range names {
		flags = append(flags, "-"+name+" "+p[name].String())
	}
	return flags
}

// String renders p as a single space-separated flag string.
func (p Params) String() string {
	return strings.Join(p.Flags(), " ")
}
