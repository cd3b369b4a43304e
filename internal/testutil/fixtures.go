package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
)

// MustDoc decodes a JSON document or fails the test.
func MustDoc(t testing.TB, src string) doc.Value {
	t.Helper()
	v, err := doc.Decode([]byte(src))
	if err != nil {
		t.Fatalf("decode %q: %v", src, err)
	}
	return v
}

// MustFrame parses a JSON frame document or fails the test.
func MustFrame(t testing.TB, src string) *frame.Frame {
	t.Helper()
	f, err := frame.Parse("fixture.fr.json", []byte(src))
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	return f
}

// WriteFiles creates files (name -> content) under dir, making parent
// directories as needed.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}
