package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/filmreel/internal/doc"
)

// TraceSnapshot captures a scenario execution for golden comparison.
// It serializes to canonical JSON so repeated runs are byte-identical.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Passed       bool
	ErrorCode    string
	Cut          doc.Value
	Trace        []TraceEvent
}

// Document converts the snapshot into a document tree.
func (s *TraceSnapshot) Document() doc.Object {
	trace := make(doc.Array, len(s.Trace))
	for i, event := range s.Trace {
		obj := doc.Object{
			"frame":    doc.String(event.Frame),
			"position": doc.Int(event.Position),
			"seq":      doc.Int(event.Seq),
			"state":    doc.String(event.State),
			"request":  orNull(event.Request),
			"response": orNull(event.Response),
			"cut":      orNull(event.Cut),
		}
		if event.Code != "" {
			obj["code"] = doc.String(event.Code)
		}
		trace[i] = obj
	}

	out := doc.Object{
		"scenario_name": doc.String(s.ScenarioName),
		"run_id":        doc.String(s.RunID),
		"passed":        doc.Bool(s.Passed),
		"cut":           orNull(s.Cut),
		"trace":         trace,
	}
	if s.ErrorCode != "" {
		out["error_code"] = doc.String(s.ErrorCode)
	}
	return out
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return doc.MarshalCanonical(s.Document())
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Passed:       result.RunErr == nil,
		ErrorCode:    result.ErrorCode(),
		Cut:          result.Cut.Document(),
		Trace:        result.Trace,
	}
}

func orNull(v doc.Value) doc.Value {
	if v == nil {
		return doc.Null{}
	}
	return v
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
