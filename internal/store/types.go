package store

import "github.com/roach88/filmreel/internal/doc"

// Run status values.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Run is one reel execution.
type Run struct {
	ID     string
	Reel   string
	Seq    int64
	Status string
	// Error is the first error of a failed run.
	Error string
	// Register is the final register as serialized by the runner.
	Register string
}

// Take is one executed frame.
type Take struct {
	RunID    string
	Seq      int64
	Frame    string
	Position int
	State    string
	Request  doc.Value
	Response doc.Value
	// Register is the register after the frame, as serialized by the runner.
	Register string
	Error    string
}
