package placeholder

import (
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/filmreel/internal/doc"
)

// tokenPattern captures the run of backslashes in front of a placeholder
// and the variable name.
var tokenPattern = regexp.MustCompile(`(\\*)\$\{([^{}]+)\}`)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segVar
)

// segment is one piece of a scanned string leaf: decoded literal text, or
// the name of a placeholder.
type segment struct {
	kind segmentKind
	text string
}

// scan splits s into literal and placeholder segments. In front of a
// placeholder each backslash pair is one literal backslash and an odd
// backslash escapes it, so \${A} is the text ${A} and \\${A} is a
// backslash followed by the placeholder. Adjacent literals are merged.
func scan(s string) []segment {
	if !strings.Contains(s, "${") {
		return []segment{{kind: segLiteral, text: s}}
	}
	var (
		segs []segment
		lit  strings.Builder
		last int
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: segLiteral, text: lit.String()})
			lit.Reset()
		}
	}
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(s, -1) {
		lit.WriteString(s[last:m[0]])
		slashes := m[3] - m[2]
		lit.WriteString(strings.Repeat(`\`, slashes/2))
		if slashes%2 == 1 {
			lit.WriteString(s[m[4]-2 : m[1]])
		} else {
			flush()
			segs = append(segs, segment{kind: segVar, text: s[m[4]:m[5]]})
		}
		last = m[1]
	}
	lit.WriteString(s[last:])
	flush()
	if len(segs) == 0 {
		segs = append(segs, segment{kind: segLiteral})
	}
	return segs
}

// render is the inverse of scan: it encodes segments so that scanning the
// result yields the same segments.
func render(segs []segment) string {
	var b strings.Builder
	for i, seg := range segs {
		if seg.kind == segVar {
			b.WriteString("${" + seg.text + "}")
			continue
		}
		text := escapeTokens(seg.text)
		if i+1 < len(segs) && segs[i+1].kind == segVar {
			trimmed := strings.TrimRight(text, `\`)
			text = trimmed + strings.Repeat(`\`, 2*(len(text)-len(trimmed)))
		}
		b.WriteString(text)
	}
	return b.String()
}

// escapeTokens doubles the backslashes in front of every placeholder-shaped
// token in s and adds one more, so each decodes back to itself.
func escapeTokens(s string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		n := strings.IndexByte(tok, '$')
		return strings.Repeat(`\`, 2*n+1) + tok[n:]
	})
}

func hasVar(segs []segment) bool {
	for _, s := range segs {
		if s.kind == segVar {
			return true
		}
	}
	return false
}

// Sole reports whether s is exactly one unescaped placeholder and returns its
// name.
func Sole(s string) (string, bool) {
	segs := scan(s)
	if len(segs) == 1 && segs[0].kind == segVar {
		return segs[0].text, true
	}
	return "", false
}

// Escape makes s literal so that no part of it is read as a placeholder.
func Escape(s string) string {
	return render([]segment{{kind: segLiteral, text: s}})
}

// Names returns the distinct unescaped placeholder names referenced anywhere
// in v, sorted.
func Names(v doc.Value) []string {
	seen := make(map[string]struct{})
	walkStrings(v, func(s string) {
		for _, seg := range scan(s) {
			if seg.kind == segVar {
				seen[seg.text] = struct{}{}
			}
		}
	})
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.SortFunc(names, doc.CompareKeys)
	return names
}

func walkStrings(v doc.Value, fn func(string)) {
	switch val := v.(type) {
	case doc.String:
		fn(string(val))
	case doc.Array:
		for _, elem := range val {
			walkStrings(elem, fn)
		}
	case doc.Object:
		for _, elem := range val {
			walkStrings(elem, fn)
		}
	}
}
