package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/testutil"
)

const passingScenario = `
name: session-pass
run_id: run-cli
reel: session.vr.json
responses:
  create: {status: 200, body: {session_id: sess-1}}
  use: {status: 201}
expect:
  cut: {SESSION_ID: sess-1}
assertions:
  - type: trace_order
    frames: [create, use]
`

const failingScenario = `
name: session-fail
reel: session.vr.json
responses:
  create: {status: 200, body: {session_id: sess-1}}
  use: {status: 200}
expect:
  pass: true
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeSessionReel(t, dir)
	testutil.WriteFiles(t, dir, files)
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, nil, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, nil, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, nil, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, nil, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"pass.yaml": passingScenario})

	out, err := execute(t, nil, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ session-pass")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"pass.yaml": passingScenario,
		"fail.yaml": failingScenario,
	})

	out, err := execute(t, nil, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	// fail.yaml sorts first.
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "session-fail", resp.Data.Scenarios[0].Name)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"pass.yaml": passingScenario,
		"fail.yaml": failingScenario,
	})

	out, err := execute(t, nil, "test", dir, "--filter", "pa*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "name: [\n"})

	out, err := execute(t, nil, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"pass.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "session-pass.golden")

	out, err := execute(t, nil, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ session-pass (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-cli"`)
	assert.Contains(t, string(data), `"scenario_name":"session-pass"`)

	_, err = execute(t, nil, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"stale":true}`), 0o644))
	out, err = execute(t, nil, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
