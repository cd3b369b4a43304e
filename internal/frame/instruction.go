package frame

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/placeholder"
)

// InstructionSet declares which cut variables a frame reads and which it
// writes. It is immutable once built.
type InstructionSet struct {
	reads  []string
	writes map[string]string
}

// NewInstructionSet builds an instruction set. Duplicate reads collapse.
func NewInstructionSet(reads []string, writes map[string]string) InstructionSet {
	set := make(map[string]struct{}, len(reads))
	for _, r := range reads {
		set[r] = struct{}{}
	}
	sorted := slices.Collect(maps.Keys(set))
	slices.SortFunc(sorted, doc.CompareKeys)

	w := make(map[string]string, len(writes))
	maps.Copy(w, writes)
	return InstructionSet{reads: sorted, writes: w}
}

// From builds a read list; a helper for instruction set literals.
func From(names ...string) []string {
	return names
}

// To builds a write map from alternating name/expression pairs.
func To(pairs ...string) map[string]string {
	if len(pairs)%2 != 0 {
		panic("frame.To: odd number of arguments")
	}
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}

// Reads returns the declared input variables in sorted order.
func (s InstructionSet) Reads() []string {
	return slices.Clone(s.reads)
}

// Writes returns a copy of the output bindings (name -> query expression).
func (s InstructionSet) Writes() map[string]string {
	return maps.Clone(s.writes)
}

// WriteNames returns the output variable names in sorted order.
func (s InstructionSet) WriteNames() []string {
	names := slices.Collect(maps.Keys(s.writes))
	slices.SortFunc(names, doc.CompareKeys)
	return names
}

// Expression returns the query expression bound to a write name.
func (s InstructionSet) Expression(name string) (string, bool) {
	e, ok := s.writes[name]
	return e, ok
}

// Check verifies that every declared read is present in vars. The first
// missing name (in sorted order) is reported as *placeholder.MissingVariableError.
func (s InstructionSet) Check(vars placeholder.Lookup) error {
	for _, name := range s.reads {
		if _, ok := vars.Get(name); !ok {
			return &placeholder.MissingVariableError{Name: name}
		}
	}
	return nil
}

// Equal compares two instruction sets.
func (s InstructionSet) Equal(other InstructionSet) bool {
	return slices.Equal(s.reads, other.reads) && maps.Equal(s.writes, other.writes)
}

// Document renders the set in frame document form ({from: [...], to: {...}}).
func (s InstructionSet) Document() doc.Object {
	from := make(doc.Array, len(s.reads))
	for i, r := range s.reads {
		from[i] = doc.String(r)
	}
	to := make(doc.Object, len(s.writes))
	for k, v := range s.writes {
		to[k] = doc.String(v)
	}
	return doc.Object{"from": from, "to": to}
}

// instructionSetFromDocument accepts from/reads and to/writes aliases.
func instructionSetFromDocument(v doc.Value) (InstructionSet, error) {
	if v == nil {
		return NewInstructionSet(nil, nil), nil
	}
	if _, isNull := v.(doc.Null); isNull {
		return NewInstructionSet(nil, nil), nil
	}
	obj, ok := v.(doc.Object)
	if !ok {
		return InstructionSet{}, fmt.Errorf("cut must be an object, got %s", doc.TypeName(v))
	}

	readsVal, err := alias(obj, "from", "reads")
	if err != nil {
		return InstructionSet{}, err
	}
	writesVal, err := alias(obj, "to", "writes")
	if err != nil {
		return InstructionSet{}, err
	}

	var reads []string
	if readsVal != nil {
		arr, ok := readsVal.(doc.Array)
		if !ok {
			return InstructionSet{}, fmt.Errorf("cut.from must be an array of strings, got %s", doc.TypeName(readsVal))
		}
		for i, elem := range arr {
			s, ok := elem.(doc.String)
			if !ok {
				return InstructionSet{}, fmt.Errorf("cut.from[%d] must be a string, got %s", i, doc.TypeName(elem))
			}
			reads = append(reads, string(s))
		}
	}

	writes := map[string]string{}
	if writesVal != nil {
		wobj, ok := writesVal.(doc.Object)
		if !ok {
			return InstructionSet{}, fmt.Errorf("cut.to must be an object, got %s", doc.TypeName(writesVal))
		}
		for k, elem := range wobj {
			s, ok := elem.(doc.String)
			if !ok {
				return InstructionSet{}, fmt.Errorf("cut.to.%s must be a string, got %s", k, doc.TypeName(elem))
			}
			writes[k] = string(s)
		}
	}

	return NewInstructionSet(reads, writes), nil
}

// alias returns the value stored under either name; both at once is an error.
func alias(obj doc.Object, primary, secondary string) (doc.Value, error) {
	a, hasA := obj[primary]
	b, hasB := obj[secondary]
	switch {
	case hasA && hasB:
		return nil, fmt.Errorf("cut declares both %q and %q", primary, secondary)
	case hasA:
		return a, nil
	case hasB:
		return b, nil
	}
	return nil, nil
}
