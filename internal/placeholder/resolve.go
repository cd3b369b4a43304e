package placeholder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/filmreel/internal/doc"
)

// Lookup is the read side of a cut register.
type Lookup interface {
	Get(key string) (string, bool)
}

// MissingVariableError reports a placeholder or declared read with no
// register value.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q", e.Name)
}

// IsMissingVariable reports whether err wraps a *MissingVariableError.
func IsMissingVariable(err error) bool {
	var mv *MissingVariableError
	return errors.As(err, &mv)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTypedLeaves lets a leaf that is exactly one placeholder take the type
// of its value: "42" becomes a number, "true" a bool, "null" a null. Other
// values, and every placeholder inside a longer string, stay strings.
func WithTypedLeaves() Option {
	return func(r *Resolver) {
		r.typed = true
	}
}

// Resolver substitutes register values into documents.
// The zero value performs plain string interpolation.
type Resolver struct {
	typed bool
}

// NewResolver returns a Resolver configured by opts.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a copy of v with every placeholder substituted and every
// escape decoded. The first missing name fails with *MissingVariableError.
//
// A document without placeholder or escape tokens is returned unchanged, so
// resolving an already resolved document is a no-op.
func (r *Resolver) Resolve(v doc.Value, vars Lookup) (doc.Value, error) {
	return r.walk(v, func(s string) (doc.Value, error) {
		return r.resolveLeaf(s, vars)
	})
}

// ResolveKnown substitutes only the names present in vars. Unknown
// placeholders and escapes are left as written; substituted values are
// escaped so a later Match compares them literally.
func (r *Resolver) ResolveKnown(v doc.Value, vars Lookup) doc.Value {
	out, _ := r.walk(v, func(s string) (doc.Value, error) {
		return r.hydrateLeaf(s, vars), nil
	})
	return out
}

// ResolveString interpolates a single string (e.g. a request uri).
func (r *Resolver) ResolveString(s string, vars Lookup) (string, error) {
	var b strings.Builder
	for _, seg := range scan(s) {
		if seg.kind != segVar {
			b.WriteString(seg.text)
			continue
		}
		val, ok := vars.Get(seg.text)
		if !ok {
			return "", &MissingVariableError{Name: seg.text}
		}
		b.WriteString(val)
	}
	return b.String(), nil
}

func (r *Resolver) walk(v doc.Value, leaf func(string) (doc.Value, error)) (doc.Value, error) {
	switch val := v.(type) {
	case doc.String:
		return leaf(string(val))
	case doc.Array:
		out := make(doc.Array, len(val))
		for i, elem := range val {
			e, err := r.walk(elem, leaf)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case doc.Object:
		out := make(doc.Object, len(val))
		for _, k := range val.SortedKeys() {
			e, err := r.walk(val[k], leaf)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *Resolver) resolveLeaf(s string, vars Lookup) (doc.Value, error) {
	segs := scan(s)
	if len(segs) == 1 && segs[0].kind == segVar {
		val, ok := vars.Get(segs[0].text)
		if !ok {
			return nil, &MissingVariableError{Name: segs[0].text}
		}
		return r.leafValue(val), nil
	}
	out, err := r.ResolveString(s, vars)
	if err != nil {
		return nil, err
	}
	return doc.String(out), nil
}

func (r *Resolver) hydrateLeaf(s string, vars Lookup) doc.Value {
	segs := scan(s)
	if !hasVar(segs) {
		return doc.String(s)
	}
	if len(segs) == 1 {
		if val, ok := vars.Get(segs[0].text); ok {
			if typed := r.leafValue(val); typed != doc.String(val) {
				return typed
			}
			return doc.String(Escape(val))
		}
		return doc.String(s)
	}
	out := make([]segment, 0, len(segs))
	for _, seg := range segs {
		if seg.kind == segVar {
			if val, ok := vars.Get(seg.text); ok {
				seg = segment{kind: segLiteral, text: val}
			}
		}
		if n := len(out); n > 0 && seg.kind == segLiteral && out[n-1].kind == segLiteral {
			out[n-1].text += seg.text
			continue
		}
		out = append(out, seg)
	}
	return doc.String(render(out))
}

func (r *Resolver) leafValue(val string) doc.Value {
	if !r.typed {
		return doc.String(val)
	}
	parsed, err := doc.Decode([]byte(val))
	if err != nil {
		return doc.String(val)
	}
	switch parsed.(type) {
	case doc.Int, doc.Float, doc.Bool, doc.Null:
		return parsed
	}
	return doc.String(val)
}

var defaultResolver = &Resolver{}

// Resolve substitutes with plain string interpolation. See Resolver.Resolve.
func Resolve(v doc.Value, vars Lookup) (doc.Value, error) {
	return defaultResolver.Resolve(v, vars)
}

// ResolveKnown is Resolver.ResolveKnown with plain string interpolation.
func ResolveKnown(v doc.Value, vars Lookup) doc.Value {
	return defaultResolver.ResolveKnown(v, vars)
}
