// Package manifest builds the per-tile records of the annotation manifest and
// writes them as CSV.
package manifest

// Record is an insertion-ordered string mapping. Setting an existing key
// replaces its value and keeps its position.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set adds or overwrites a field.
func (r *Record) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns a field's value.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Values returns the field values in the order of keys. Missing keys yield
// empty strings.
func (r *Record) Values(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.values[k]
	}
	return out
}

func (r *Record) sameKeys(keys []string) bool {
	if len(keys) != len(r.keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := r.values[k]; !ok {
			return false
		}
	}
	return true
}
