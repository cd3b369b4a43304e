package harness

import (
	"errors"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/reel"
)

// TraceEvent is one take as read back from the take log.
type TraceEvent struct {
	Frame    string
	Position int
	Seq      int64
	State    string
	Request  doc.Value
	Response doc.Value
	// Cut is the register after the take.
	Cut doc.Value
	// Code is the reel error code of a failed take.
	Code string
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	RunID string

	// Trace holds the takes in seq order.
	Trace []TraceEvent

	// Errors lists failed expectations and assertions.
	Errors []string

	// Cut is the final register.
	Cut *cut.Register

	// RunErr is the reel failure, if any. A failing reel can still be a
	// passing scenario.
	RunErr error
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Cut:    cut.New(),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ErrorCode returns the code of the reel failure, or "".
func (r *Result) ErrorCode() string {
	return string(reel.CodeOf(r.RunErr))
}

// FailedFrame returns the name of the frame that failed, or "".
func (r *Result) FailedFrame() string {
	var re *reel.Error
	if errors.As(r.RunErr, &re) {
		return re.Frame
	}
	return ""
}
