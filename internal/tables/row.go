// Package tables reads and writes the comma-delimited tables exchanged with
// the simulation: a header row followed by data rows addressed by column name.
package tables

// Row is an insertion-ordered set of named fields.
type Row struct {
	fields []string
	values map[string]string
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// RowOf builds a row from alternating field/value pairs. It panics on an odd
// number of arguments.
func RowOf(kv ...string) *Row {
	if len(kv)%2 != 0 {
		panic("tables.RowOf: odd number of arguments")
	}
	r := NewRow()
	for i := 0; i < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// Set stores value under field, overriding any existing value. New fields
// are appended to the field order.
func (r *Row) Set(field, value string) {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
}

// Fill stores value under field only if field is absent. It reports whether
// the value was stored.
func (r *Row) Fill(field, value string) bool {
	if _, ok := r.values[field]; ok {
		return false
	}
	r.fields = append(r.fields, field)
	r.values[field] = value
	return true
}

// Get returns the value of field and whether it is present.
func (r *Row) Get(field string) (string, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Value returns the value of field, or "" if absent.
func (r *Row) Value(field string) string {
	return r.values[field]
}

// Has reports whether field is present.
func (r *Row) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Fields returns the field names in insertion order.
func (r *Row) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Map returns a copy of the row as a plain map.
func (r *Row) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
