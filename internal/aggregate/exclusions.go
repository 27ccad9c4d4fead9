package aggregate

import (
	"fmt"
	"strings"
)

// FieldSet is a set of field names.
type FieldSet map[string]bool

// NewFieldSet returns a set holding names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Has reports whether name is in s. A nil set holds nothing.
func (s FieldSet) Has(name string) bool {
	return s[name]
}

// SiteOccupancyFields returns site_cnt_{i}_gene_occupancy for i in [0, n).
func SiteOccupancyFields(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("site_cnt_%d_gene_occupancy", i)
	}
	return out
}

// Exclusions lists the fields dropped from each source table, and the
// markers identifying list-valued fields.
type Exclusions struct {
	Config      FieldSet
	GeneStats   FieldSet
	RepOrg      FieldSet
	ListMarkers []string
}

// IsList reports whether field holds a delimited list.
func (e Exclusions) IsList(field string) bool {
	for _, m := range e.ListMarkers {
		if strings.Contains(field, m) {
			return true
		}
	}
	return false
}
