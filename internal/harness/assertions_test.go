package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/doc"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{
			Frame: "login", Position: 0, Seq: 2, State: "Done",
			Request: doc.Object{"uri": doc.String("POST /login"), "body": doc.Object{"user": doc.String("bob")}},
		},
		{
			Frame: "list", Position: 1, Seq: 3, State: "Done",
			Request: doc.Object{"uri": doc.String("GET /items")},
		},
		{
			Frame: "list", Position: 2, Seq: 4, State: "Mismatched", Code: "RESPONSE_MISMATCH",
			Request: doc.Object{"uri": doc.String("GET /items?page=2")},
		},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"frame only", Assertion{Frame: "list"}, true},
		{"request subset", Assertion{Frame: "login", Request: map[string]any{"body": map[string]any{"user": "bob"}}}, true},
		{"wildcard", Assertion{Frame: "list", Request: map[string]any{"uri": "GET /items?page=${PAGE}"}}, true},
		{"wrong value", Assertion{Frame: "login", Request: map[string]any{"body": map[string]any{"user": "eve"}}}, false},
		{"unknown frame", Assertion{Frame: "logout"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertTraceContains, ae.Type)
			assert.Equal(t, "not found in trace", ae.Actual)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Frames: []string{"login", "list"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Frames: []string{"list"}}))

	err := assertTraceOrder(trace, Assertion{Frames: []string{"list", "login"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list (pos 2) should be before login (pos 1)")

	err = assertTraceOrder(trace, Assertion{Frames: []string{"login", "logout"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing frame: logout")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Frame: "list", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Frame: "logout", Count: 0}))

	err := assertTraceCount(trace, Assertion{Frame: "login", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 takes of login")
	assert.Contains(t, err.Error(), "Actual: 1 takes")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1",
		Actual:   "2",
		Trace:    sampleTrace(),
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[0] login Done")
	assert.Contains(t, msg, "[2] list Mismatched (RESPONSE_MISMATCH)")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Frame: "list", Count: 2},
		{Type: AssertTraceOrder, Frames: []string{"list", "login"}},
		{Type: "final_state"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertion 1:")
	assert.Contains(t, failures[1], `assertion 2: unknown assertion type "final_state"`)
}

func TestCheckExpect(t *testing.T) {
	passing := NewResult()
	passing.Cut.Insert("A", "1")

	no := false
	assert.Empty(t, checkExpect(Expect{Cut: map[string]string{"A": "1"}}, passing))

	failures := checkExpect(Expect{Pass: &no, ErrorCode: "RESPONSE_MISMATCH", FailedFrame: "x"}, passing)
	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "Actual: reel passed")
	assert.Equal(t, `error_code: expected RESPONSE_MISMATCH, got ""`, failures[1])
	assert.Equal(t, `failed_frame: expected x, got ""`, failures[2])
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
