package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/reel"
)

// Scenario is an offline reel run with scripted responses and expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RunID pins the run ID. Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Reel is a path to a reel document or an inline reel.
	Reel yaml.Node `yaml:"reel"`

	// Cut is merged over the reel's initial register.
	Cut map[string]string `yaml:"cut,omitempty"`

	Strict bool `yaml:"strict,omitempty"`

	// Responses maps frame names to one response, or a list of responses
	// consumed in order when the name repeats.
	Responses map[string]yaml.Node `yaml:"responses,omitempty"`

	Expect Expect `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// BaseDir resolves relative reel and frame paths.
	BaseDir string `yaml:"-"`

	reelPath  string
	inline    *reel.VirtualReel
	responses map[string][]doc.Value
}

// Expect is the expected outcome of the run.
type Expect struct {
	// Pass defaults to true.
	Pass *bool `yaml:"pass,omitempty"`

	// ErrorCode is the expected reel error code (e.g. RESPONSE_MISMATCH).
	ErrorCode string `yaml:"error_code,omitempty"`

	// FailedFrame is the expected name of the failing frame.
	FailedFrame string `yaml:"failed_frame,omitempty"`

	// Cut is a subset of the expected final register.
	Cut map[string]string `yaml:"cut,omitempty"`
}

// WantPass reports the expected run outcome.
func (e Expect) WantPass() bool {
	return e.Pass == nil || *e.Pass
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count.
	Type string `yaml:"type"`

	// Frame is the frame name (trace_contains, trace_count).
	Frame string `yaml:"frame,omitempty"`

	// Request is a request template matched against the hydrated request
	// with the usual placeholder wildcards (trace_contains).
	Request map[string]any `yaml:"request,omitempty"`

	// Frames is the expected execution order (trace_order).
	Frames []string `yaml:"frames,omitempty"`

	// Count is the expected number of takes of Frame (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Relative paths inside
// the scenario resolve against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.BaseDir = baseDir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and decodes the reel and responses.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch s.Reel.Kind {
	case 0:
		return fmt.Errorf("reel is required")
	case yaml.ScalarNode:
		s.reelPath = s.Reel.Value
		if s.reelPath == "" {
			return fmt.Errorf("reel path is empty")
		}
	case yaml.MappingNode:
		v, err := nodeDocument(&s.Reel)
		if err != nil {
			return fmt.Errorf("reel: %w", err)
		}
		vr, err := reel.VirtualReelFromDocument(v)
		if err != nil {
			return fmt.Errorf("reel: %w", err)
		}
		s.inline = vr
	default:
		return fmt.Errorf("reel must be a path or a mapping")
	}

	s.responses = make(map[string][]doc.Value, len(s.Responses))
	for _, name := range sortedKeys(s.Responses) {
		node := s.Responses[name]
		var items []*yaml.Node
		switch node.Kind {
		case yaml.SequenceNode:
			items = node.Content
		case yaml.MappingNode:
			items = []*yaml.Node{&node}
		default:
			return fmt.Errorf("responses.%s: must be a response or a list of responses", name)
		}
		for i, item := range items {
			v, err := nodeDocument(item)
			if err != nil {
				return fmt.Errorf("responses.%s[%d]: %w", name, i, err)
			}
			if _, ok := v.(doc.Object); !ok {
				return fmt.Errorf("responses.%s[%d]: must be an object", name, i)
			}
			s.responses[name] = append(s.responses[name], v)
		}
	}

	if s.Expect.WantPass() && (s.Expect.ErrorCode != "" || s.Expect.FailedFrame != "") {
		return fmt.Errorf("expect: error_code and failed_frame require pass: false")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Frame == "" {
			return fmt.Errorf("assertions[%d]: frame is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Frames) == 0 {
			return fmt.Errorf("assertions[%d]: frames list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Frame == "" {
			return fmt.Errorf("assertions[%d]: frame is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func nodeDocument(n *yaml.Node) (doc.Value, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	return doc.FromAny(raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// isReelFile reports frame, reel and register documents that share a
// directory with scenarios.
func isReelFile(name string) bool {
	for _, suffix := range []string{".fr", ".vr", ".cut"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// FindScenarios lists the scenario files (.yaml/.yml, excluding *.fr, *.vr
// and *.cut documents) under dir in lexical order. A non-empty filter is a
// glob matched against the file name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), ext)
		if isReelFile(name) {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
