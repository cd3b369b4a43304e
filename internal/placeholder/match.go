package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/filmreel/internal/doc"
)

// MismatchError reports the first path at which an observed document
// diverged from its expected template.
type MismatchError struct {
	// Path locates the failing node, e.g. ".status" or ".body.items[2]".
	Path string
	// Reason is a short description of the failure.
	Reason   string
	Expected doc.Value
	Observed doc.Value
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("response mismatch at %s: %s", e.Path, e.Reason)
}

// IsMismatch reports whether err wraps a *MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// MatchOption configures Match.
type MatchOption func(*matcher)

// Strict makes Match reject observed object fields that the template does
// not mention.
func Strict(strict bool) MatchOption {
	return func(m *matcher) {
		m.strict = strict
	}
}

type matcher struct {
	strict bool
}

// Match compares an expected template against an observed document and
// returns nil or a *MismatchError carrying the first failing path. Object
// keys are visited in sorted order so the reported path is deterministic.
func Match(expected, observed doc.Value, opts ...MatchOption) error {
	m := &matcher{}
	for _, opt := range opts {
		opt(m)
	}
	return m.match(".", expected, observed)
}

func (m *matcher) match(path string, exp, obs doc.Value) error {
	switch e := exp.(type) {
	case doc.String:
		return m.matchString(path, string(e), obs)
	case doc.Object:
		o, ok := obs.(doc.Object)
		if !ok {
			return typeMismatch(path, exp, obs)
		}
		for _, k := range e.SortedKeys() {
			child := joinField(path, k)
			ov, present := o[k]
			if !present {
				return &MismatchError{Path: child, Reason: "field missing from observed document", Expected: e[k]}
			}
			if err := m.match(child, e[k], ov); err != nil {
				return err
			}
		}
		if m.strict {
			for _, k := range o.SortedKeys() {
				if _, known := e[k]; !known {
					return &MismatchError{Path: joinField(path, k), Reason: "unexpected field in observed document", Observed: o[k]}
				}
			}
		}
		return nil
	case doc.Array:
		o, ok := obs.(doc.Array)
		if !ok {
			return typeMismatch(path, exp, obs)
		}
		if len(e) != len(o) {
			return &MismatchError{
				Path:     path,
				Reason:   fmt.Sprintf("expected %d elements, observed %d", len(e), len(o)),
				Expected: exp,
				Observed: obs,
			}
		}
		for i := range e {
			if err := m.match(joinIndex(path, i), e[i], o[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		if !doc.Equal(exp, obs) {
			return valueMismatch(path, exp, obs)
		}
		return nil
	}
}

func (m *matcher) matchString(path, tmpl string, obs doc.Value) error {
	segs := scan(tmpl)
	if len(segs) == 1 && segs[0].kind == segVar {
		return nil
	}
	if !hasVar(segs) {
		want := decodeAll(segs)
		if s, ok := obs.(doc.String); ok && string(s) == want {
			return nil
		}
		return valueMismatch(path, doc.String(want), obs)
	}
	s, ok := obs.(doc.String)
	if !ok {
		return typeMismatch(path, doc.String(tmpl), obs)
	}
	if !patternFor(segs).MatchString(string(s)) {
		return &MismatchError{
			Path:     path,
			Reason:   fmt.Sprintf("%q does not match template %q", string(s), tmpl),
			Expected: doc.String(tmpl),
			Observed: obs,
		}
	}
	return nil
}

func decodeAll(segs []segment) string {
	var b strings.Builder
	for _, seg := range segs {
		b.WriteString(seg.text)
	}
	return b.String()
}

// patternFor compiles a template into an anchored regexp where literal
// segments match themselves and each placeholder matches any substring.
func patternFor(segs []segment) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, seg := range segs {
		if seg.kind == segVar {
			b.WriteString(`(.*?)`)
			continue
		}
		b.WriteString(regexp.QuoteMeta(seg.text))
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

func typeMismatch(path string, exp, obs doc.Value) error {
	return &MismatchError{
		Path:     path,
		Reason:   fmt.Sprintf("expected %s, observed %s", doc.TypeName(exp), doc.TypeName(obs)),
		Expected: exp,
		Observed: obs,
	}
}

func valueMismatch(path string, exp, obs doc.Value) error {
	return &MismatchError{
		Path:     path,
		Reason:   fmt.Sprintf("expected %s, observed %s", show(exp), show(obs)),
		Expected: exp,
		Observed: obs,
	}
}

func show(v doc.Value) string {
	b, err := doc.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

func joinField(path, key string) string {
	if path == "." {
		path = ""
	}
	if identifier.MatchString(key) {
		return path + "." + key
	}
	return path + "." + strconv.Quote(key)
}

func joinIndex(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
