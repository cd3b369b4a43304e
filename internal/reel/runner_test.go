package reel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/placeholder"
	"github.com/roach88/filmreel/internal/store"
)

// scripted replays canned responses and records the requests it saw.
type scripted struct {
	responses []doc.Value
	requests  []frame.Request
}

func (s *scripted) Send(_ context.Context, _ frame.Protocol, req frame.Request) (doc.Value, error) {
	s.requests = append(s.requests, req)
	if len(s.requests) > len(s.responses) {
		return nil, errors.New("no scripted response")
	}
	return s.responses[len(s.requests)-1], nil
}

func mustDoc(t *testing.T, src string) doc.Value {
	t.Helper()
	v, err := doc.Decode([]byte(src))
	require.NoError(t, err)
	return v
}

const createSession = `{
  "protocol": "HTTP",
  "cut": {"to": {"SESSION_ID": ".session_id"}},
  "request": {"uri": "POST /sessions"},
  "response": {"status": 200, "body": {"session_id": "${SESSION_ID}"}}
}`

const useSession = `{
  "protocol": "HTTP",
  "cut": {"from": ["SESSION_ID"]},
  "request": {"uri": "POST /orders", "body": {"token": "${SESSION_ID}"}},
  "response": {"status": 201}
}`

func sessionPlan(t *testing.T) *Plan {
	return &Plan{
		Name:     "session",
		Register: cut.New(),
		Entries: []Entry{
			{Name: "create", Frame: mustFrame(t, createSession)},
			{Name: "use", Frame: mustFrame(t, useSession)},
		},
	}
}

func newRunner(s Sender) *Runner {
	return &Runner{Sender: s, IDs: NewFixedGenerator("run-1", "run-2", "run-3")}
}

func TestRun_SessionFlowsBetweenFrames(t *testing.T) {
	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"session_id": "sess-42", "extra": true}}`),
		mustDoc(t, `{"status": 201, "body": {}}`),
	}}
	plan := sessionPlan(t)

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Equal(t, "run-1", res.RunID)

	require.Len(t, sender.requests, 2)
	assert.Equal(t, doc.Object{"token": doc.String("sess-42")}, sender.requests[1].Body)

	got, _ := res.Register.Get("SESSION_ID")
	assert.Equal(t, "sess-42", got)
	assert.Equal(t, 0, plan.Register.Len(), "plan register must not change")

	require.Len(t, res.Takes, 2)
	for _, take := range res.Takes {
		assert.Equal(t, Done, take.State)
	}
	assert.Equal(t, map[string]string{"SESSION_ID": "sess-42"}, res.Takes[0].Writes)
}

func TestRun_MissingReadStopsReel(t *testing.T) {
	sender := &scripted{responses: []doc.Value{mustDoc(t, `{"status": 200}`)}}
	plan := &Plan{
		Name:     "r",
		Register: cut.New(),
		Entries: []Entry{
			{Name: "needs-var", Frame: mustFrame(t, `{
			  "protocol": "HTTP",
			  "cut": {"from": ["UNSET_VAR"]},
			  "request": {"uri": "GET /x"},
			  "response": {"status": 200}
			}`)},
			{Name: "never", Frame: mustFrame(t, pingFrame)},
		},
	}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsMissingVariable(err))

	var mv *placeholder.MissingVariableError
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, "UNSET_VAR", mv.Name)

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "needs-var", re.Frame)
	assert.Equal(t, 0, re.Index)

	assert.Empty(t, sender.requests, "no request may be built")
	require.Len(t, res.Takes, 1)
	assert.Equal(t, NotStarted, res.Takes[0].State)
	assert.Nil(t, res.Takes[0].Request)
}

func TestRun_StatusMismatchAppliesNoWrites(t *testing.T) {
	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"id": "u1"}}`),
	}}
	plan := &Plan{
		Name:     "r",
		Register: cut.Of("KEEP", "me"),
		Entries: []Entry{{Name: "create", Frame: mustFrame(t, `{
		  "protocol": "HTTP",
		  "cut": {"to": {"USER_ID": ".id"}},
		  "request": {"uri": "POST /users"},
		  "response": {"status": 201, "body": {"id": "${USER_ID}"}}
		}`)}},
	}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsMismatch(err))

	var mm *placeholder.MismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, ".status", mm.Path)

	assert.False(t, res.Register.Has("USER_ID"))
	assert.True(t, res.Register.Equal(cut.Of("KEEP", "me")))
	assert.Equal(t, Mismatched, res.Takes[0].State)
	assert.Nil(t, res.Takes[0].Writes)
}

func TestRun_PathQueryErrorIsAllOrNothing(t *testing.T) {
	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"a": "1"}}`),
	}}
	plan := &Plan{
		Name:     "r",
		Register: cut.New(),
		Entries: []Entry{{Name: "f", Frame: mustFrame(t, `{
		  "protocol": "HTTP",
		  "cut": {"to": {"A": ".a", "B": ".b"}},
		  "request": {"uri": "GET /"},
		  "response": {"status": 200}
		}`)}},
	}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsPathQuery(err))

	var pq *PathQueryError
	require.ErrorAs(t, err, &pq)
	assert.Equal(t, "B", pq.Name)
	assert.Equal(t, 0, res.Register.Len())
	assert.Equal(t, Matched, res.Takes[0].State)
}

func TestRun_WriteScopes(t *testing.T) {
	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"user": {"id": 7, "tags": ["a"]}}}`),
	}}
	plan := &Plan{
		Name:     "r",
		Register: cut.Of("NAME", "ada"),
		Entries: []Entry{{Name: "f", Frame: mustFrame(t, `{
		  "protocol": "HTTP",
		  "cut": {"from": ["NAME"], "to": {
		    "ID": ".user.id",
		    "TAGS": "$response.body.user.tags",
		    "STATUS": "$response.status",
		    "SENT": "$request.body.name"
		  }},
		  "request": {"uri": "POST /users", "body": {"name": "${NAME}"}},
		  "response": {"status": 200}
		}`)}},
	}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ID":     "7",
		"TAGS":   `["a"]`,
		"STATUS": "200",
		"SENT":   "ada",
	}, res.Takes[0].Writes)
}

func TestRun_PlainPathsSelectFromBody(t *testing.T) {
	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"response": "ok", "request": {"id": "r-1"}}}`),
	}}
	plan := &Plan{
		Name:     "r",
		Register: cut.New(),
		Entries: []Entry{{Name: "f", Frame: mustFrame(t, `{
		  "protocol": "HTTP",
		  "cut": {"to": {"R": ".response", "ID": ".request.id"}},
		  "request": {"uri": "GET /echo"},
		  "response": {"status": 200}
		}`)}},
	}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"R": "ok", "ID": "r-1"}, res.Takes[0].Writes)
}

func TestRun_UnknownWriteScope(t *testing.T) {
	sender := &scripted{responses: []doc.Value{mustDoc(t, `{"status": 200}`)}}
	plan := &Plan{
		Name:     "r",
		Register: cut.New(),
		Entries: []Entry{{Name: "f", Frame: mustFrame(t, `{
		  "protocol": "HTTP",
		  "cut": {"to": {"X": "$header.a"}},
		  "request": {"uri": "GET /"},
		  "response": {"status": 200}
		}`)}},
	}

	_, err := newRunner(sender).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsPathQuery(err), "%v", err)
}

func TestRun_TransportFailure(t *testing.T) {
	sender := SenderFunc(func(context.Context, frame.Protocol, frame.Request) (doc.Value, error) {
		return nil, errors.New("connection refused")
	})
	plan := &Plan{Name: "r", Register: cut.New(), Entries: []Entry{{Name: "ping", Frame: mustFrame(t, pingFrame)}}}

	res, err := newRunner(sender).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, Mismatched, res.Takes[0].State)
}

func TestRun_CancelledContext(t *testing.T) {
	sender := &scripted{responses: []doc.Value{mustDoc(t, `{"status": 200}`)}}
	plan := &Plan{Name: "r", Register: cut.New(), Entries: []Entry{{Name: "ping", Frame: mustFrame(t, pingFrame)}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(sender).Run(ctx, plan)
	require.Error(t, err)
	assert.Equal(t, ErrCodeTransport, CodeOf(err))
	assert.Empty(t, sender.requests)
}

func TestRun_StrictRejectsExtraFields(t *testing.T) {
	observed := mustDoc(t, `{"status": 200, "body": {"extra": 1}}`)
	plan := &Plan{Name: "r", Register: cut.New(), Entries: []Entry{{Name: "ping", Frame: mustFrame(t, pingFrame)}}}

	_, err := newRunner(&scripted{responses: []doc.Value{observed}}).Run(context.Background(), plan)
	require.NoError(t, err)

	r := newRunner(&scripted{responses: []doc.Value{observed}})
	r.Strict = true
	_, err = r.Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsMismatch(err))
}

func TestRunFrame(t *testing.T) {
	sender := &scripted{responses: []doc.Value{mustDoc(t, `{"status": 200, "body": {"session_id": "s"}}`)}}
	reg := cut.Of("OTHER", "x")

	take, next, err := newRunner(sender).RunFrame(context.Background(), "create", mustFrame(t, createSession), reg)
	require.NoError(t, err)
	assert.Equal(t, Done, take.State)
	assert.True(t, next.Equal(cut.Of("OTHER", "x", "SESSION_ID", "s")))
	assert.False(t, reg.Has("SESSION_ID"))
}

func TestRun_RecordsTakes(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "takes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sender := &scripted{responses: []doc.Value{
		mustDoc(t, `{"status": 200, "body": {"session_id": "sess-1"}}`),
		mustDoc(t, `{"status": 500}`),
	}}
	r := newRunner(sender)
	r.Store = s

	_, err = r.Run(context.Background(), sessionPlan(t))
	require.Error(t, err)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, `{"SESSION_ID":"sess-1"}`, run.Register)
	assert.Contains(t, run.Error, "RESPONSE_MISMATCH")

	takes, err := s.RunTakes(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, takes, 2)
	assert.Equal(t, "create", takes[0].Frame)
	assert.Equal(t, int64(2), takes[0].Seq)
	assert.Equal(t, string(Done), takes[0].State)
	assert.Equal(t, string(Mismatched), takes[1].State)
	assert.Equal(t, `{"SESSION_ID":"sess-1"}`, takes[1].Register)

	// a second run resumes the logical clock
	r2 := newRunner(&scripted{responses: []doc.Value{mustDoc(t, `{"status": 200}`)}})
	r2.IDs = NewFixedGenerator("run-2")
	r2.Store = s
	_, err = r2.Run(context.Background(), &Plan{Name: "p", Register: cut.New(), Entries: []Entry{{Name: "ping", Frame: mustFrame(t, pingFrame)}}})
	require.NoError(t, err)
	run2, err := s.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), run2.Seq)
}

func TestRun_NoSender(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), sessionPlan(t))
	assert.Error(t, err)
}

func TestRun_SenderSeesFrame(t *testing.T) {
	var seen []string
	sender := SenderFunc(func(ctx context.Context, _ frame.Protocol, _ frame.Request) (doc.Value, error) {
		name, index, ok := FrameFromContext(ctx)
		require.True(t, ok)
		seen = append(seen, fmt.Sprintf("%s#%d", name, index))
		return doc.Object{"status": doc.Int(200)}, nil
	})
	plan := &Plan{Name: "r", Register: cut.New(), Entries: []Entry{
		{Name: "a", Frame: mustFrame(t, pingFrame)},
		{Name: "b", Frame: mustFrame(t, pingFrame)},
	}}

	_, err := newRunner(sender).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"a#0", "b#1"}, seen)
}

// okSender answers every request with status 200.
type okSender struct{}

func (okSender) Send(context.Context, frame.Protocol, frame.Request) (doc.Value, error) {
	return doc.Object{"status": doc.Int(200)}, nil
}

func TestRun_ParallelRunsShareOneClock(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "takes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := &Runner{Sender: okSender{}, IDs: UUIDv7Generator{}, Store: s}
	const runs = 8
	ping := mustFrame(t, pingFrame)

	var wg sync.WaitGroup
	ids := make([]string, runs)
	errs := make([]error, runs)
	for i := range runs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plan := &Plan{Name: fmt.Sprintf("p%d", i), Register: cut.New(), Entries: []Entry{{Name: "ping", Frame: ping}}}
			res, err := r.Run(context.Background(), plan)
			errs[i] = err
			if res != nil {
				ids[i] = res.RunID
			}
		}(i)
	}
	wg.Wait()

	assert.Nil(t, r.Clock)
	seen := map[int64]bool{}
	for i := range runs {
		require.NoError(t, errs[i])
		run, err := s.GetRun(context.Background(), ids[i])
		require.NoError(t, err)
		takes, err := s.RunTakes(context.Background(), ids[i])
		require.NoError(t, err)
		require.Len(t, takes, 1)
		for _, seq := range []int64{run.Seq, takes[0].Seq} {
			assert.False(t, seen[seq], "seq %d stamped twice", seq)
			seen[seq] = true
		}
	}
	last, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2*runs), last)
}
