package doc

import (
	"bytes"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON (RFC 8785 style) for a document.
//
// Differences from Marshal:
//  1. Strings and keys are NFC normalized
//  2. U+2028 and U+2029 are emitted literally rather than escaped
//
// Object keys are sorted by UTF-16 code units and no HTML escaping is
// applied in either encoder. Repeated runs over identical content produce
// byte-identical output regardless of how the document was built.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, canonicalString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalString(s string) ([]byte, error) {
	b, err := encodeString(norm.NFC.String(s))
	if err != nil {
		return nil, err
	}
	return unescapeLineSeparators(b), nil
}

// unescapeLineSeparators rewrites the \u2028 and \u2029 escapes produced by
// encoding/json back to the literal characters. An escape preceded by an odd
// run of backslashes is literal text and stays untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') && trailingBackslashes(out)%2 == 0 {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func trailingBackslashes(b []byte) int {
	n := 0
	for j := len(b) - 1; j >= 0 && b[j] == '\\'; j-- {
		n++
	}
	return n
}
