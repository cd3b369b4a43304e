// Package schema validates frame, reel and cut register documents against
// the CUE definitions embedded in filmreel.cue.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/filmreel/internal/doc"
)

//go:embed filmreel.cue
var schemaSource string

// Kind names a document type.
type Kind string

const (
	KindFrame    Kind = "frame"
	KindReel     Kind = "reel"
	KindRegister Kind = "register"
)

var definitions = map[Kind]string{
	KindFrame:    "#Frame",
	KindReel:     "#Reel",
	KindRegister: "#Register",
}

// cue.Context is not safe for concurrent use; every access goes through mu.
var (
	mu      sync.Mutex
	once    sync.Once
	ctx     *cue.Context
	root    cue.Value
	loadErr error
)

func load() error {
	once.Do(func() {
		ctx = cuecontext.New()
		root = ctx.CompileString(schemaSource, cue.Filename("filmreel.cue"))
		loadErr = root.Err()
	})
	return loadErr
}

// Validate checks v against the definition for kind. Failures are returned
// as *doc.ParseError carrying the CUE diagnostics.
func Validate(kind Kind, v doc.Value) error {
	def, ok := definitions[kind]
	if !ok {
		return fmt.Errorf("unknown document kind %q", kind)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := load(); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	val := ctx.Encode(doc.ToAny(v))
	if err := val.Err(); err != nil {
		return &doc.ParseError{Message: fmt.Sprintf("%s document", kind), Err: err}
	}
	unified := root.LookupPath(cue.ParsePath(def)).Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &doc.ParseError{
			Message: fmt.Sprintf("%s document does not match schema:\n%s", kind, details(err)),
		}
	}
	return nil
}

func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}

// Detect guesses the document kind: objects with a protocol are frames,
// objects with frames are reels, anything else is treated as a register.
func Detect(v doc.Value) Kind {
	obj, ok := v.(doc.Object)
	if !ok {
		return KindRegister
	}
	if _, ok := obj["protocol"]; ok {
		return KindFrame
	}
	if _, ok := obj["frames"]; ok {
		return KindReel
	}
	return KindRegister
}
