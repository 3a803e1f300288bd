package lrscript

import (
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/vars"
)

// Syntax holds the variable markers of the source scripts and the table
// used to rename variables while rewriting references.
type Syntax struct {
	Left  string
	Right string
	Vars  vars.Mapping
}

func DefaultSyntax() Syntax {
	return Syntax{Left: defaultLeft, Right: defaultRight}
}

// Markers returns the variable markers, falling back to braces.
func (s Syntax) Markers() (string, string) {
	left, right := s.Left, s.Right
	if left == "" {
		left = defaultLeft
	}
	if right == "" {
		right = defaultRight
	}
	return left, right
}

// Unquote strips one pair of surrounding double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Unescape decodes \\, \" and \'. Any other backslash is dropped and the
// character after it kept.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) {
			switch s[i+1] {
			case '\\', '"', '\'':
				b.WriteByte(s[i+1])
				i++
			}
		}
	}
	return b.String()
}

// Rewrite replaces every Left+name+Right span with ${name}, renaming through
// Vars. Spans are non-greedy, non-empty and single-line. The input is
// returned as is when nothing matched.
func (s Syntax) Rewrite(in string) string {
	left, right := s.Markers()
	var (
		b       strings.Builder
		last    int
		matched bool
	)
	for i := 0; i < len(in); {
		start := strings.Index(in[i:], left)
		if start < 0 {
			break
		}
		start += i
		if left == defaultLeft && start > 0 && in[start-1] == '$' {
			// already in template form
			i = start + 1
			continue
		}
		end, ok := spanEnd(in, start+len(left), right)
		if !ok {
			i = start + 1
			continue
		}
		if !matched {
			b.Grow(len(in))
			matched = true
		}
		b.WriteString(in[last:start])
		b.WriteString(templateOpen)
		b.WriteString(s.Vars.Lookup(in[start+len(left) : end]))
		b.WriteString(templateEnd)
		last = end + len(right)
		i = last
	}
	if !matched {
		return in
	}
	b.WriteString(in[last:])
	return b.String()
}

// spanEnd finds the closing marker for content starting at from. Content
// must be non-empty and must not cross a line break.
func spanEnd(in string, from int, right string) (int, bool) {
	for j := from; j < len(in); j++ {
		if strings.HasPrefix(in[j:], right) {
			return j, j > from
		}
		if in[j] == '\n' || in[j] == '\r' {
			return 0, false
		}
	}
	return 0, false
}

func (s Syntax) Normalize(in string) string {
	return s.Rewrite(Unescape(Unquote(in)))
}

func NormalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenNameChars, r) {
			return '_'
		}
		return r
	}, name)
}

// FindPrefixed returns the first raw parameter starting with prefix,
// compared case-insensitively, quoted or not.
func FindPrefixed(params []string, prefix string) (string, bool) {
	want := strings.ToLower(prefix)
	for _, p := range params {
		lower := strings.ToLower(p)
		if strings.HasPrefix(lower, want) || strings.HasPrefix(lower, `"`+want) {
			return p, true
		}
	}
	return "", false
}

// FindNamed returns the first raw "name=..." parameter.
func FindNamed(params []string, name string) (string, bool) {
	return FindPrefixed(params, name+"=")
}

// FindBoundary returns the first raw boundary parameter such as "LB=..." or
// "LB/IC=...". The keyword must be followed by '=' or '/'.
func FindBoundary(params []string, keyword string) (string, bool) {
	for _, p := range params {
		text := strings.TrimPrefix(p, `"`)
		if len(text) <= len(keyword) || !strings.EqualFold(text[:len(keyword)], keyword) {
			continue
		}
		if c := text[len(keyword)]; c == '=' || c == '/' {
			return p, true
		}
	}
	return "", false
}

// Value returns the normalised value of the named parameter.
func (s Syntax) Value(params []string, name string) (string, bool) {
	raw, ok := FindNamed(params, name)
	if !ok {
		return "", false
	}
	v := strings.TrimPrefix(s.Normalize(raw), `"`)
	if len(v) <= len(name) {
		return "", true
	}
	return v[len(name)+1:], true
}

// Section returns the normalised tokens following marker up to the first
// section terminator. It reports false only when marker is absent.
func (s Syntax) Section(params []string, marker string) ([]string, bool) {
	at := -1
	for i, p := range params {
		if p == marker {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, false
	}
	rest := params[at+1:]
	out := make([]string, len(rest))
	for i, p := range rest {
		out[i] = s.Normalize(p)
	}
	limit := len(out)
	for _, term := range sectionTerminators {
		for i := 0; i < limit; i++ {
			if out[i] == term {
				limit = i
				break
			}
		}
	}
	return out[:limit], true
}

// BoundaryValue returns the text after the first '=' of a boundary
// parameter such as "LB/IC=value". Options that cannot be honoured are
// passed to report; the value is returned regardless.
func (s Syntax) BoundaryValue(param string, report func(option string)) string {
	norm := s.Normalize(param)
	opts, value, ok := strings.Cut(norm, "=")
	for _, opt := range strings.Split(opts, "/") {
		if _, restricted := restrictedBoundaryOptions[opt]; restricted && report != nil {
			report(opt)
		}
	}
	if !ok {
		return ""
	}
	return value
}
