package reader

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

type URLErrorKind int

const (
	URLMissing URLErrorKind = iota
	URLMissingScheme
	URLMalformed
)

func (k URLErrorKind) String() string {
	switch k {
	case URLMissing:
		return "missing"
	case URLMissingScheme:
		return "missing scheme"
	default:
		return "malformed"
	}
}

type URLError struct {
	Kind  URLErrorKind
	Input string
	Err   error
}

func (e *URLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s url %q: %v", e.Kind, e.Input, e.Err)
	}
	return fmt.Sprintf("%s url %q", e.Kind, e.Input)
}

func (e *URLError) Unwrap() error {
	return e.Err
}

var (
	errNoHost            = errors.New("no host")
	errUnsupportedScheme = errors.New("unsupported scheme")
)

// ResolveURL builds an absolute http(s) URL from a raw candidate. When the
// candidate has no scheme but starts with a variable reference, it is
// retried once as "http://" + candidate.
func ResolveURL(syn lrscript.Syntax, candidate string) (*url.URL, error) {
	u, err := resolveAbsolute(syn, candidate)
	if err == nil {
		return u, nil
	}
	var ue *URLError
	left, _ := syn.Markers()
	if errors.As(err, &ue) && ue.Kind == URLMissingScheme && strings.HasPrefix(candidate, left) {
		return resolveAbsolute(syn, "http://"+candidate)
	}
	return nil, err
}

func resolveAbsolute(syn lrscript.Syntax, candidate string) (*url.URL, error) {
	norm := syn.Normalize(candidate)
	if !hasScheme(norm) {
		return nil, errdef.Wrap(errdef.CodeParse, &URLError{Kind: URLMissingScheme, Input: norm}, "resolve url")
	}
	u, err := parseLenient(norm)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, &URLError{Kind: URLMalformed, Input: norm, Err: err}, "resolve url")
	}
	if err := checkAbsolute(u); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, &URLError{Kind: URLMalformed, Input: norm, Err: err}, "resolve url")
	}
	return u, nil
}

func checkAbsolute(u *url.URL) error {
	if _, ok := project.ParseScheme(u.Scheme); !ok {
		return fmt.Errorf("%w %q", errUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return errNoHost
	}
	return nil
}

// hasScheme reports whether s starts with "scheme:".
func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return false
			}
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}

const refPlaceholder = "lrconvref%dx"

// parseLenient parses s like url.Parse but accepts ${name} references in
// the host, which net/url rejects.
func parseLenient(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err == nil || !strings.Contains(s, "${") {
		return u, err
	}
	masked, refs := maskRefs(s)
	u, maskedErr := url.Parse(masked)
	if maskedErr != nil {
		return nil, err
	}
	restore := func(v string) string {
		for i := len(refs) - 1; i >= 0; i-- {
			v = strings.ReplaceAll(v, fmt.Sprintf(refPlaceholder, i), refs[i])
		}
		return v
	}
	u.Host = restore(u.Host)
	u.Path = restore(u.Path)
	u.RawPath = restore(u.RawPath)
	u.RawQuery = restore(u.RawQuery)
	u.Fragment = restore(u.Fragment)
	u.RawFragment = restore(u.RawFragment)
	u.Opaque = restore(u.Opaque)
	return u, nil
}

func maskRefs(s string) (string, []string) {
	var (
		b    strings.Builder
		refs []string
	)
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		end += start + 1
		b.WriteString(s[:start])
		fmt.Fprintf(&b, refPlaceholder, len(refs))
		refs = append(refs, s[start:end])
		s = s[end:]
	}
	b.WriteString(s)
	return b.String(), refs
}

// rawPath returns the path as written in the script: percent-encoded, with
// ${name} references left as they are.
func rawPath(u *url.URL) string {
	if u.RawPath != "" {
		return u.RawPath
	}
	masked, refs := maskRefs(u.Path)
	esc := (&url.URL{Path: masked}).EscapedPath()
	for i := len(refs) - 1; i >= 0; i-- {
		esc = strings.ReplaceAll(esc, fmt.Sprintf(refPlaceholder, i), refs[i])
	}
	return esc
}

// ExtraResourceURLs resolves the URL attribute of every item against base.
// Items that do not resolve are reported and skipped.
func ExtraResourceURLs(tokens []string, base *url.URL, opts lrscript.ItemOptions, report func(format string, args ...any)) []*url.URL {
	var out []*url.URL
	for _, item := range lrscript.SplitItems(tokens, opts) {
		raw, ok := item.Attribute("URL")
		if !ok {
			continue
		}
		u, err := resolveReference(base, raw)
		if err != nil {
			if report != nil {
				report("invalid extra resource URL %q: %v", raw, err)
			}
			continue
		}
		out = append(out, u)
	}
	return out
}

func resolveReference(base *url.URL, raw string) (*url.URL, error) {
	ref, err := parseLenient(raw)
	if err != nil {
		return nil, err
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if err := checkAbsolute(u); err != nil {
		return nil, err
	}
	return u, nil
}
