// Package cut implements the cut register: the named variable store shared by
// the frames of a reel.
//
// A Register maps variable names to string values. Iteration and
// serialization always visit keys in sorted order so that a register written
// twice with the same content is byte-identical on disk.
package cut

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/roach88/filmreel/internal/doc"
)

// Register holds cut variables. The zero value is an empty, usable register.
type Register struct {
	vars map[string]string
}

// New returns an empty register.
func New() *Register {
	return &Register{vars: make(map[string]string)}
}

// Of builds a register from alternating key/value pairs.
// It panics on an odd argument count; it is meant for literals in tests and
// examples.
func Of(kv ...string) *Register {
	if len(kv)%2 != 0 {
		panic("cut.Of: odd number of arguments")
	}
	r := New()
	for i := 0; i < len(kv); i += 2 {
		r.Insert(kv[i], kv[i+1])
	}
	return r
}

// FromMap copies m into a new register.
func FromMap(m map[string]string) *Register {
	r := New()
	for k, v := range m {
		r.vars[k] = v
	}
	return r
}

// FromDocument builds a register from a flat object whose values are all
// strings. Anything else is a *doc.ParseError.
func FromDocument(v doc.Value) (*Register, error) {
	obj, ok := v.(doc.Object)
	if !ok {
		return nil, &doc.ParseError{Message: fmt.Sprintf("cut register must be an object, got %s", doc.TypeName(v))}
	}
	r := New()
	for _, k := range obj.SortedKeys() {
		s, ok := obj[k].(doc.String)
		if !ok {
			return nil, &doc.ParseError{Message: fmt.Sprintf("cut register value for %q must be a string, got %s", k, doc.TypeName(obj[k]))}
		}
		r.vars[k] = string(s)
	}
	return r, nil
}

// Decode parses register bytes. name selects JSON or YAML by extension and is
// used in error messages.
func Decode(name string, data []byte) (*Register, error) {
	v, err := doc.DecodeFile(name, data)
	if err != nil {
		return nil, err
	}
	r, err := FromDocument(v)
	if err != nil {
		if pe, ok := err.(*doc.ParseError); ok {
			pe.Source = name
		}
		return nil, err
	}
	return r, nil
}

// Insert sets key to value and returns the previous value, if any.
func (r *Register) Insert(key, value string) (string, bool) {
	if r.vars == nil {
		r.vars = make(map[string]string)
	}
	prev, ok := r.vars[key]
	r.vars[key] = value
	return prev, ok
}

// Get returns the value stored for key.
func (r *Register) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.vars[key]
	return v, ok
}

// Has reports whether key is set.
func (r *Register) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of variables.
func (r *Register) Len() int {
	if r == nil {
		return 0
	}
	return len(r.vars)
}

// Keys returns the variable names in sorted order.
func (r *Register) Keys() []string {
	if r == nil {
		return nil
	}
	keys := slices.Collect(maps.Keys(r.vars))
	slices.SortFunc(keys, doc.CompareKeys)
	return keys
}

// All yields (key, value) pairs in sorted key order. The sequence can be
// ranged over any number of times and always yields the same order.
func (r *Register) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range r.Keys() {
			if !yield(k, r.vars[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (r *Register) Clone() *Register {
	if r == nil {
		return New()
	}
	return FromMap(r.vars)
}

// Merge returns a new register holding the union of r and other. On key
// collisions other wins. Neither input is modified.
func (r *Register) Merge(other *Register) *Register {
	out := r.Clone()
	out.Update(other)
	return out
}

// Update copies every variable of other into r, overwriting collisions.
func (r *Register) Update(other *Register) {
	if other == nil {
		return
	}
	for k, v := range other.vars {
		r.Insert(k, v)
	}
}

// MergeAll folds registers left to right; later registers override earlier
// ones. Nil entries are skipped.
func MergeAll(regs ...*Register) *Register {
	out := New()
	for _, r := range regs {
		out.Update(r)
	}
	return out
}

// Missing returns the names from want that are not set, in sorted order.
func (r *Register) Missing(want []string) []string {
	var missing []string
	for _, name := range want {
		if !r.Has(name) {
			missing = append(missing, name)
		}
	}
	slices.SortFunc(missing, doc.CompareKeys)
	return missing
}

// Document returns the register as a flat document object.
func (r *Register) Document() doc.Object {
	obj := make(doc.Object, r.Len())
	for k, v := range r.All() {
		obj[k] = doc.String(v)
	}
	return obj
}

// Serialize returns a flat JSON object with sorted keys. Values are written
// byte for byte, so decoding the output yields an equal register.
func (r *Register) Serialize() ([]byte, error) {
	return doc.Marshal(r.Document())
}

// SerializeIndent returns the sorted form indented for humans and files.
func (r *Register) SerializeIndent() ([]byte, error) {
	return doc.MarshalIndent(r.Document(), "  ")
}

// Equal reports whether two registers hold the same variables.
func (r *Register) Equal(other *Register) bool {
	if r.Len() != other.Len() {
		return false
	}
	for k, v := range r.All() {
		ov, ok := other.Get(k)
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// String renders the serialized register for output, logs and test failures.
func (r *Register) String() string {
	b, err := r.Serialize()
	if err != nil {
		return fmt.Sprintf("<invalid register: %v>", err)
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler using the sorted form.
func (r *Register) MarshalJSON() ([]byte, error) {
	return r.Serialize()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Register) UnmarshalJSON(data []byte) error {
	v, err := doc.Decode(data)
	if err != nil {
		return err
	}
	parsed, err := FromDocument(v)
	if err != nil {
		return err
	}
	r.vars = parsed.vars
	return nil
}

var (
	_ json.Marshaler   = (*Register)(nil)
	_ json.Unmarshaler = (*Register)(nil)
)
