package store

import (
	"fmt"

	"github.com/roach88/filmreel/internal/doc"
)

// marshalDoc converts a document to sorted-key JSON TEXT for storage.
// Strings are kept as observed (no normalization).
// A nil document is stored as null.
func marshalDoc(v doc.Value) (string, error) {
	if v == nil {
		return "null", nil
	}
	data, err := doc.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDoc parses stored JSON TEXT. "null" reads back as nil.
func unmarshalDoc(s string) (doc.Value, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	v, err := doc.Decode([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return v, nil
}
