package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/logging"
	"github.com/roach88/filmreel/internal/reel"
	"github.com/roach88/filmreel/internal/store"
	"github.com/roach88/filmreel/internal/testutil"
)

// Harness executes one scenario with deterministic helpers.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runID  testutil.FixedRunID
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory take log. The returned error
// covers problems with the scenario itself (unreadable reel, bad sources);
// reel failures are reported in Result.RunErr and judged by the expectations.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, nil)
}

// RunWithLogger is Run with a logger for the runner and scripted sender.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runID:  testutil.FixedRunID(scenario.RunID),
		logger: logger.With("scenario", scenario.Name),
	}

	plan, err := h.plan(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	runner := &reel.Runner{
		Sender: newScripted(scenario.responses, h.logger),
		Logger: h.logger,
		Strict: scenario.Strict,
		Store:  st,
		IDs:    h.runID,
		Clock:  h.clock,
	}
	res, runErr := runner.Run(ctx, plan)
	if res == nil {
		return nil, fmt.Errorf("failed to execute reel: %w", runErr)
	}

	result := NewResult()
	result.RunID = res.RunID
	result.RunErr = res.Err
	result.Cut = res.Register

	codes := make(map[int]string, len(res.Takes))
	for _, t := range res.Takes {
		if t.Err != nil {
			codes[t.Index] = string(reel.CodeOf(t.Err))
		}
	}
	if err := h.readTrace(ctx, res.RunID, codes, result); err != nil {
		return nil, err
	}

	for _, msg := range checkExpect(scenario.Expect, result) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// plan assembles the scenario's reel and applies its cut overlay.
func (h *Harness) plan(s *Scenario) (*reel.Plan, error) {
	vr, dir := s.inline, s.BaseDir
	if vr == nil {
		path := s.reelPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.BaseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load reel: %w", &reel.FileError{Path: path, Err: err})
		}
		vr, err = reel.ParseVirtualReel(path, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reel: %w", err)
		}
		// Sources named by a reel file are relative to that file.
		dir = filepath.Dir(path)
	}

	plan, err := reel.Assemble(vr, reel.DirLoader(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble reel: %w", err)
	}
	if len(s.Cut) > 0 {
		plan.Register = plan.Register.Merge(cut.FromMap(s.Cut))
	}
	return plan, nil
}

// readTrace rebuilds the trace from the take log.
func (h *Harness) readTrace(ctx context.Context, runID string, codes map[int]string, result *Result) error {
	takes, err := h.store.RunTakes(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read takes: %w", err)
	}
	for _, t := range takes {
		reg, err := doc.Decode([]byte(t.Register))
		if err != nil {
			return fmt.Errorf("take %d register: %w", t.Position, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Frame:    t.Frame,
			Position: t.Position,
			Seq:      t.Seq,
			State:    t.State,
			Request:  t.Request,
			Response: t.Response,
			Cut:      reg,
			Code:     codes[t.Position],
		})
	}
	return nil
}

// scripted serves canned responses keyed by frame name.
type scripted struct {
	mu        sync.Mutex
	responses map[string][]doc.Value
	served    map[string]int
	logger    *slog.Logger
}

func newScripted(responses map[string][]doc.Value, logger *slog.Logger) *scripted {
	return &scripted{responses: responses, served: map[string]int{}, logger: logger}
}

func (s *scripted) Send(ctx context.Context, _ frame.Protocol, req frame.Request) (doc.Value, error) {
	name, _, ok := reel.FrameFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("scripted sender: request %q has no frame", req.URI)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.responses[name]
	n := s.served[name]
	if n >= len(queue) {
		return nil, fmt.Errorf("no scripted response for frame %q (call %d)", name, n+1)
	}
	s.served[name] = n + 1
	s.logger.Debug("scripted response", "frame", name, "call", n+1)
	return doc.Clone(queue[n]), nil
}
