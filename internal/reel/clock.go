package reel

import "sync/atomic"

// Sequencer hands out logical sequence numbers for runs and takes.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Every run and take is stamped with a
// strictly increasing seq, so take logs order the same way on every replay.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
