package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/reel"
	"github.com/roach88/filmreel/internal/testutil"
)

const createFrame = `{
  "protocol": "HTTP",
  "cut": {"to": {"SESSION_ID": ".session_id"}},
  "request": {"uri": "POST /sessions"},
  "response": {"status": 200, "body": {"session_id": "${SESSION_ID}"}}
}`

const useFrame = `{
  "protocol": "HTTP",
  "cut": {"from": ["SESSION_ID"]},
  "request": {"uri": "POST /orders", "body": {"token": "${SESSION_ID}"}},
  "response": {"status": 201}
}`

// writeSessionReel lays out a two-frame virtual reel and returns the reel path.
func writeSessionReel(t *testing.T, dir string) string {
	t.Helper()
	testutil.WriteFiles(t, dir, map[string]string{
		"session.vr.json":       `{"name": "session", "frames": ["frames/create.fr.json", "frames/use.fr.json"], "cut": "base.cut.json"}`,
		"base.cut.json":         `{"TENANT": "acme"}`,
		"frames/create.fr.json": createFrame,
		"frames/use.fr.json":    useFrame,
	})
	return filepath.Join(dir, "session.vr.json")
}

// uriSender answers by request uri; unknown uris are transport errors.
type uriSender struct {
	responses map[string]string
	seen      []string
}

func newSessionSender() *uriSender {
	return &uriSender{responses: map[string]string{
		"POST /sessions": `{"status": 200, "body": {"session_id": "sess-42"}}`,
		"POST /orders":   `{"status": 201, "body": {}}`,
	}}
}

func (s *uriSender) Send(ctx context.Context, _ frame.Protocol, req frame.Request) (doc.Value, error) {
	s.seen = append(s.seen, req.URI)
	src, ok := s.responses[req.URI]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", req.URI)
	}
	return doc.Decode([]byte(src))
}

// execute runs the root command with a stub sender and fixed run IDs.
func execute(t *testing.T, sender reel.Sender, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		Sender: sender,
		IDs:    reel.NewFixedGenerator("run-1", "run-2", "run-3"),
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
