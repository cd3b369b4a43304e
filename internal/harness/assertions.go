package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/placeholder"
)

// AssertionError is returned when an assertion or expectation fails.
// It carries the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Position, event.Frame, event.State)
			if event.Code != "" {
				fmt.Fprintf(&buf, " (%s)", event.Code)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result's trace and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

// assertTraceContains looks for a take of the frame whose request matches
// the template. Template placeholders are wildcards.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	var want doc.Value
	if a.Request != nil {
		v, err := doc.FromAny(a.Request)
		if err != nil {
			return fmt.Errorf("trace_contains request: %w", err)
		}
		want = v
	}

	for _, event := range trace {
		if event.Frame != a.Frame {
			continue
		}
		if want == nil || placeholder.Match(want, event.Request) == nil {
			return nil
		}
	}

	expected := "frame " + a.Frame
	if want != nil {
		expected += " with request " + mustCanonical(want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the frames appear in the given order.
// Other frames may run in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Frame]; !seen {
			positions[event.Frame] = i + 1
		}
	}

	for _, name := range a.Frames {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all frames present: %v", a.Frames),
				Actual:   fmt.Sprintf("missing frame: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Frames); i++ {
		prev, curr := a.Frames[i-1], a.Frames[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("frames in order: %v", a.Frames),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of takes of a frame.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Frame == a.Frame {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d takes of %s", a.Count, a.Frame),
			Actual:   fmt.Sprintf("%d takes", count),
			Trace:    trace,
		}
	}
	return nil
}

// checkExpect compares the run outcome with the scenario's expectations.
func checkExpect(e Expect, result *Result) []string {
	var failures []string

	passed := result.RunErr == nil
	if passed != e.WantPass() {
		actual := "reel passed"
		if !passed {
			actual = "reel failed: " + result.RunErr.Error()
		}
		failures = append(failures, (&AssertionError{
			Type:     "pass",
			Expected: fmt.Sprintf("pass=%t", e.WantPass()),
			Actual:   actual,
			Trace:    result.Trace,
		}).Error())
	}

	if e.ErrorCode != "" && result.ErrorCode() != e.ErrorCode {
		failures = append(failures, fmt.Sprintf("error_code: expected %s, got %q", e.ErrorCode, result.ErrorCode()))
	}
	if e.FailedFrame != "" && result.FailedFrame() != e.FailedFrame {
		failures = append(failures, fmt.Sprintf("failed_frame: expected %s, got %q", e.FailedFrame, result.FailedFrame()))
	}

	for _, key := range slices.Sorted(maps.Keys(e.Cut)) {
		want := e.Cut[key]
		got, ok := result.Cut.Get(key)
		switch {
		case !ok:
			failures = append(failures, fmt.Sprintf("cut: %s not set, expected %q", key, want))
		case got != want:
			failures = append(failures, fmt.Sprintf("cut: %s = %q, expected %q", key, got, want))
		}
	}
	return failures
}

func mustCanonical(v doc.Value) string {
	b, err := doc.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
