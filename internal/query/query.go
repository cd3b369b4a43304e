// Package query evaluates write-binding expressions such as
// ".items[0].id" or "$response.status" against document trees.
//
// Grammar:
//
//	expr     = [ scope ] path
//	scope    = "$" ident
//	path     = "." | selector { selector }
//	selector = "." ident | "." quoted | "[" digits "]"
//
// A scope only names which document the caller evaluates the path against;
// "$response" alone is the same as "$response.".
//
// An ident is any run of characters other than '.', '[', ']', '"' and
// whitespace. A quoted selector is a JSON string literal.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/filmreel/internal/doc"
)

// NoMatchError reports an expression that selects nothing.
type NoMatchError struct {
	Expr string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("query %q matched nothing", e.Expr)
}

// IsNoMatch reports whether err wraps a *NoMatchError.
func IsNoMatch(err error) bool {
	var nm *NoMatchError
	return errors.As(err, &nm)
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query %q: %s at offset %d", e.Expr, e.Msg, e.Offset)
}

// Selector is one step of a compiled expression: a field name or an index.
type Selector struct {
	Field   string
	Index   int
	IsIndex bool
}

func (s Selector) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	if isIdent(s.Field) {
		return "." + s.Field
	}
	q, _ := json.Marshal(s.Field)
	return "." + string(q)
}

// Expr is a compiled query expression.
type Expr struct {
	src   string
	scope string
	path  []Selector
}

// Compile parses an expression.
func Compile(src string) (*Expr, error) {
	e := &Expr{src: src}
	s := strings.TrimSpace(src)
	if s == "" {
		return nil, &SyntaxError{Expr: src, Msg: "empty expression"}
	}

	i := 0
	if s[0] == '$' {
		i++
		for i < len(s) && s[i] != '.' && s[i] != '[' && identByte(s[i]) && s[i] != '$' {
			i++
		}
		if i == 1 {
			return nil, &SyntaxError{Expr: src, Offset: i, Msg: "expected scope name after '$'"}
		}
		e.scope = s[1:i]
	}
	if s[i:] == "." || i == len(s) {
		return e, nil
	}

	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			if i >= len(s) {
				return nil, &SyntaxError{Expr: src, Offset: i, Msg: "expected field after '.'"}
			}
			if s[i] == '"' {
				end, name, err := quoted(s, i)
				if err != nil {
					return nil, &SyntaxError{Expr: src, Offset: i, Msg: err.Error()}
				}
				e.path = append(e.path, Selector{Field: name})
				i = end
				continue
			}
			start := i
			for i < len(s) && identByte(s[i]) {
				i++
			}
			if i == start {
				return nil, &SyntaxError{Expr: src, Offset: i, Msg: "expected field after '.'"}
			}
			e.path = append(e.path, Selector{Field: s[start:i]})
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, &SyntaxError{Expr: src, Offset: i, Msg: "unterminated index"}
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, &SyntaxError{Expr: src, Offset: i + 1, Msg: "index must be a non-negative integer"}
			}
			e.path = append(e.path, Selector{Index: n, IsIndex: true})
			i += end + 1
		default:
			return nil, &SyntaxError{Expr: src, Offset: i, Msg: fmt.Sprintf("unexpected %q", s[i])}
		}
	}
	return e, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func quoted(s string, start int) (int, string, error) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			var name string
			if err := json.Unmarshal([]byte(s[start:i+1]), &name); err != nil {
				return 0, "", fmt.Errorf("bad quoted field: %v", err)
			}
			return i + 1, name, nil
		}
	}
	return 0, "", errors.New("unterminated quoted field")
}

func identByte(b byte) bool {
	switch b {
	case '.', '[', ']', '"', ' ', '\t', '\n', '\r':
		return false
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !identByte(s[i]) {
			return false
		}
	}
	return true
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Path returns the compiled selectors.
func (e *Expr) Path() []Selector { return e.path }

// Scope returns the name after a leading '$', or "" for a plain path.
func (e *Expr) Scope() string { return e.scope }

var (
	mu  sync.Mutex
	ctx *cue.Context
)

// Eval selects a single value from v.
func (e *Expr) Eval(v doc.Value) (doc.Value, error) {
	if len(e.path) == 0 {
		return v, nil
	}

	sels := make([]cue.Selector, len(e.path))
	for i, s := range e.path {
		if s.IsIndex {
			sels[i] = cue.Index(s.Index)
		} else {
			sels[i] = cue.Str(s.Field)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if ctx == nil {
		ctx = cuecontext.New()
	}

	root := ctx.Encode(doc.ToAny(v))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", e.src, err)
	}
	got := root.LookupPath(cue.MakePath(sels...))
	if !got.Exists() {
		return nil, &NoMatchError{Expr: e.src}
	}
	data, err := got.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", e.src, err)
	}
	return doc.Decode(data)
}

// Eval compiles and evaluates src against v.
func Eval(src string, v doc.Value) (doc.Value, error) {
	e, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(v)
}

// Text renders a selected value for storage in a register: strings are used
// as is, everything else as sorted-key JSON.
func Text(v doc.Value) (string, error) {
	if s, ok := v.(doc.String); ok {
		return string(s), nil
	}
	b, err := doc.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
