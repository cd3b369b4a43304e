package reel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/placeholder"
	"github.com/roach88/filmreel/internal/query"
	"github.com/roach88/filmreel/internal/store"
)

// State is the execution state of a frame.
//
//	NotStarted -> RequestBuilt -> Sent -> ResponseReceived -> Matched -> RegisterUpdated -> Done
//	                                   \-> Mismatched      \-> Mismatched
//
// A take records the last state reached; a failed frame never reaches
// RegisterUpdated.
type State string

const (
	NotStarted       State = "NotStarted"
	RequestBuilt     State = "RequestBuilt"
	Sent             State = "Sent"
	ResponseReceived State = "ResponseReceived"
	Matched          State = "Matched"
	Mismatched       State = "Mismatched"
	RegisterUpdated  State = "RegisterUpdated"
	Done             State = "Done"
)

// Sender is the transport collaborator. It sends a hydrated request and
// returns the observed response document ({status, body, ...}).
type Sender interface {
	Send(ctx context.Context, proto frame.Protocol, req frame.Request) (doc.Value, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, proto frame.Protocol, req frame.Request) (doc.Value, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, proto frame.Protocol, req frame.Request) (doc.Value, error) {
	return f(ctx, proto, req)
}

// TakeLog persists runs and takes. Implemented by *store.Store.
type TakeLog interface {
	LastSeq(ctx context.Context) (int64, error)
	BeginRun(ctx context.Context, run store.Run) error
	WriteTake(ctx context.Context, t store.Take) error
	FinishRun(ctx context.Context, id, status, errMsg, register string) error
}

// Take is the record of one frame execution.
type Take struct {
	Name  string
	Index int
	State State
	// Request is the hydrated request document; nil if it was never built.
	Request doc.Value
	// Response is the observed response; nil if none was received.
	Response doc.Value
	// Writes are the register values the frame produced.
	Writes map[string]string
	Err    error
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Reel     string
	Register *cut.Register
	Takes    []Take
	// Err is the first failure; nil when every frame passed.
	Err error
}

// Passed reports whether every frame completed.
func (r *Result) Passed() bool { return r.Err == nil }

// Runner executes plans frame by frame. The zero value is not usable; Sender
// must be set.
type Runner struct {
	Sender Sender
	Logger *slog.Logger
	// Strict makes response matching reject fields the template omits.
	Strict   bool
	Resolver *placeholder.Resolver
	// Store, when set, receives every run and take.
	Store TakeLog
	IDs   RunIDGenerator
	// Clock stamps runs and takes. When nil, a clock resuming after the
	// store's last seq is created on first use and shared by later runs.
	Clock Sequencer

	mu  sync.Mutex
	seq Sequencer
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

func (r *Runner) resolver() *placeholder.Resolver {
	if r.Resolver == nil {
		return placeholder.NewResolver()
	}
	return r.Resolver
}

func (r *Runner) clock(ctx context.Context) (Sequencer, error) {
	if r.Clock != nil {
		return r.Clock, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != nil {
		return r.seq, nil
	}
	if r.Store != nil {
		last, err := r.Store.LastSeq(ctx)
		if err != nil {
			return nil, err
		}
		r.seq = NewClockAt(last)
		return r.seq, nil
	}
	r.seq = NewClock()
	return r.seq, nil
}

// Run executes plan sequentially. The first failing frame stops the run;
// the returned error is the annotated *Error also stored in Result.Err.
// The plan's register is never modified. Run is safe to call concurrently
// on one Runner.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if r.Sender == nil {
		return nil, fmt.Errorf("runner: no sender configured")
	}
	ids := r.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	clock, err := r.clock(ctx)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	log := r.logger()
	res := &Result{
		RunID:    ids.Generate(),
		Reel:     plan.Name,
		Register: plan.Register.Clone(),
	}
	log = log.With("run", res.RunID, "reel", plan.Name)

	if r.Store != nil {
		if err := r.Store.BeginRun(ctx, store.Run{ID: res.RunID, Reel: plan.Name, Seq: clock.Next()}); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
	}

	log.Info("reel started", "frames", len(plan.Entries))
	for i, e := range plan.Entries {
		take, next, err := r.step(ctx, log, e.Name, i, e.Frame, res.Register)
		res.Takes = append(res.Takes, *take)

		if r.Store != nil {
			if serr := r.record(ctx, clock, res.RunID, take, next); serr != nil {
				return nil, fmt.Errorf("runner: %w", serr)
			}
		}
		if err != nil {
			res.Err = err
			log.Info("reel failed", "frame", e.Name, "index", i, "code", CodeOf(err), "error", err)
			break
		}
		res.Register = next
	}
	if res.Err == nil {
		log.Info("reel passed", "frames", len(plan.Entries))
	}

	if r.Store != nil {
		status, msg := store.StatusPassed, ""
		if res.Err != nil {
			status, msg = store.StatusFailed, res.Err.Error()
		}
		if err := r.Store.FinishRun(ctx, res.RunID, status, msg, res.Register.String()); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
	}
	return res, res.Err
}

// RunFrame executes a single frame against reg and returns the take and
// the updated register. reg is not modified; on failure the returned
// register is reg itself.
func (r *Runner) RunFrame(ctx context.Context, name string, f *frame.Frame, reg *cut.Register) (*Take, *cut.Register, error) {
	if r.Sender == nil {
		return nil, nil, fmt.Errorf("runner: no sender configured")
	}
	log := r.logger()
	return r.step(ctx, log, name, 0, f, reg)
}

func (r *Runner) record(ctx context.Context, clock Sequencer, runID string, t *Take, reg *cut.Register) error {
	st := store.Take{
		RunID:    runID,
		Seq:      clock.Next(),
		Frame:    t.Name,
		Position: t.Index,
		State:    string(t.State),
		Request:  t.Request,
		Response: t.Response,
		Register: reg.String(),
	}
	if t.Err != nil {
		st.Error = t.Err.Error()
	}
	return r.Store.WriteTake(ctx, st)
}

// step drives one frame through its state machine.
func (r *Runner) step(ctx context.Context, log *slog.Logger, name string, index int, f *frame.Frame, reg *cut.Register) (*Take, *cut.Register, error) {
	t := &Take{Name: name, Index: index, State: NotStarted}
	log = log.With("frame", name, "index", index)
	res := r.resolver()

	advance := func(s State) {
		t.State = s
		log.Debug("frame state", "state", s)
	}
	fail := func(err error) (*Take, *cut.Register, error) {
		err = annotate(err, name, index)
		t.Err = err
		return t, reg, err
	}

	req, err := f.Hydrate(reg, res)
	if err != nil {
		return fail(err)
	}
	reqDoc := req.Document()
	t.Request = reqDoc
	advance(RequestBuilt)

	if err := ctx.Err(); err != nil {
		return fail(&TransportError{Err: err})
	}
	observed, err := r.Sender.Send(WithFrame(ctx, name, index), f.Protocol, req)
	if err == nil {
		err = ctx.Err()
	}
	advance(Sent)
	if err != nil {
		advance(Mismatched)
		return fail(&TransportError{Err: err})
	}
	t.Response = observed
	advance(ResponseReceived)

	expected := f.Expected(reg, res)
	if err := placeholder.Match(expected, observed, placeholder.Strict(r.Strict)); err != nil {
		advance(Mismatched)
		return fail(err)
	}
	advance(Matched)

	writes, err := extract(f.Cut, reqDoc, observed)
	if err != nil {
		return fail(err)
	}
	next := reg.Clone()
	for _, k := range f.Cut.WriteNames() {
		next.Insert(k, writes[k])
	}
	t.Writes = writes
	advance(RegisterUpdated)

	advance(Done)
	log.Info("frame passed", "writes", len(writes))
	return t, next, nil
}

// extract evaluates every write binding before any is applied. Plain paths
// select from the observed body; $request and $response select from the
// hydrated request and the whole observed response.
func extract(set frame.InstructionSet, request, observed doc.Value) (map[string]string, error) {
	names := set.WriteNames()
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	var body doc.Value = doc.Null{}
	if obj, ok := observed.(doc.Object); ok {
		if b, ok := obj["body"]; ok {
			body = b
		}
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		src, _ := set.Expression(name)
		expr, err := query.Compile(src)
		if err != nil {
			return nil, &PathQueryError{Name: name, Expr: src, Err: err}
		}

		var target doc.Value
		switch expr.Scope() {
		case "":
			target = body
		case "request":
			target = request
		case "response":
			target = observed
		default:
			return nil, &PathQueryError{Name: name, Expr: src, Err: fmt.Errorf("unknown scope $%s", expr.Scope())}
		}
		v, err := expr.Eval(target)
		if err != nil {
			return nil, &PathQueryError{Name: name, Expr: src, Err: err}
		}
		s, err := query.Text(v)
		if err != nil {
			return nil, &PathQueryError{Name: name, Expr: src, Err: err}
		}
		out[name] = s
	}
	return out, nil
}
