package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/doc"
)

func TestPlanCommand_Text(t *testing.T) {
	path := writeSessionReel(t, t.TempDir())
	sender := newSessionSender()

	out, err := execute(t, sender, "plan", path)
	require.NoError(t, err)
	assert.Empty(t, sender.seen, "plan never sends")

	assert.Contains(t, out, "Reel session: 2 frame(s)")
	assert.Contains(t, out, "0. create [HTTP] POST /sessions frames/create.fr.json")
	assert.Contains(t, out, "1. use [HTTP] POST /orders frames/use.fr.json")
	assert.Contains(t, out, "reads:  [SESSION_ID]")
	assert.Contains(t, out, "writes: [SESSION_ID]")
	assert.Contains(t, out, `cut: {"TENANT":"acme"}`)
}

func TestPlanCommand_JSONAndOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionReel(t, dir)
	outPath := filepath.Join(dir, "plan.json")

	out, err := execute(t, nil, "plan", path, "--format", "json", "-o", outPath)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Name   string            `json:"name"`
			Cut    map[string]string `json:"cut"`
			Frames []struct {
				Name   string `json:"name"`
				Source string `json:"source"`
			} `json:"frames"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "session", resp.Data.Name)
	assert.Equal(t, map[string]string{"TENANT": "acme"}, resp.Data.Cut)
	require.Len(t, resp.Data.Frames, 2)
	assert.Equal(t, "create", resp.Data.Frames[0].Name)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	v, err := doc.Decode(data)
	require.NoError(t, err)
	canonical, err := doc.MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, string(canonical), string(data))
}

func TestPlanCommand_AssemblyError(t *testing.T) {
	out, err := execute(t, nil, "plan", filepath.Join(t.TempDir(), "missing.vr.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [FILE_ERROR]")
}
