package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/reel"
)

func TestLoadScenario_ReelPath(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "session_golden.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "session_golden", scenario.Name)
	assert.Equal(t, "run-golden", scenario.RunID)
	assert.Equal(t, filepath.Join("testdata", "scenarios"), scenario.BaseDir)
	assert.Equal(t, "../reels/session.vr.json", scenario.reelPath)
	assert.Nil(t, scenario.inline)
	assert.True(t, scenario.Expect.WantPass())
	assert.Len(t, scenario.Assertions, 3)

	require.Len(t, scenario.responses["create"], 1)
	assert.True(t, doc.Equal(
		doc.Object{"status": doc.Int(200), "body": doc.Object{"session_id": doc.String("sess-42")}},
		scenario.responses["create"][0],
	))
}

func TestLoadScenario_InlineReel(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "inline_reel.yaml"))
	require.NoError(t, err)

	require.NotNil(t, scenario.inline)
	assert.Equal(t, "inline", scenario.inline.Name)
	assert.True(t, scenario.inline.Frames.IsNamed())
	assert.Equal(t, reel.CutInline, scenario.inline.Cut.Kind)
	assert.Equal(t, map[string]string{"USER": "bob"}, scenario.Cut)
	require.Len(t, scenario.responses["whoami"], 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "reel: a.vr.json\n",
			wantErr: "name is required",
		},
		{
			name:    "missing reel",
			yaml:    "name: x\n",
			wantErr: "reel is required",
		},
		{
			name:    "reel is a list",
			yaml:    "name: x\nreel: [a, b]\n",
			wantErr: "reel must be a path or a mapping",
		},
		{
			name:    "inline reel without frames",
			yaml:    "name: x\nreel:\n  name: r\n",
			wantErr: "reel:",
		},
		{
			name:    "scalar response",
			yaml:    "name: x\nreel: a.vr.json\nresponses:\n  f: 200\n",
			wantErr: "responses.f: must be a response or a list of responses",
		},
		{
			name:    "response list of scalars",
			yaml:    "name: x\nreel: a.vr.json\nresponses:\n  f: [1]\n",
			wantErr: "responses.f[0]: must be an object",
		},
		{
			name:    "error code on passing scenario",
			yaml:    "name: x\nreel: a.vr.json\nexpect:\n  error_code: RESPONSE_MISMATCH\n",
			wantErr: "require pass: false",
		},
		{
			name:    "unknown field",
			yaml:    "name: x\nreel: a.vr.json\nflow: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "assertion without type",
			yaml:    "name: x\nreel: a.vr.json\nassertions:\n  - frame: f\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nreel: a.vr.json\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "trace_order without frames",
			yaml:    "name: x\nreel: a.vr.json\nassertions:\n  - type: trace_order\n",
			wantErr: "frames list is required",
		},
		{
			name:    "negative count",
			yaml:    "name: x\nreel: a.vr.json\nassertions:\n  - type: trace_count\n    frame: f\n    count: -1\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), ".")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"b_flow.yaml",
		"a_flow.yml",
		"session.vr.yaml",
		"login.fr.yaml",
		"seed.cut.yaml",
		"notes.txt",
		filepath.Join("nested", "c_flow.yaml"),
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_flow.yml"),
		filepath.Join(dir, "b_flow.yaml"),
		filepath.Join(dir, "nested", "c_flow.yaml"),
	}, files)

	files, err = FindScenarios(dir, "b_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_flow.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
