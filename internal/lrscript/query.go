package lrscript

import (
	"net/url"
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/project"
)

// QueryParameters decodes a raw query string into ordered parameters. A
// pair without '=' yields a parameter without value. An undecodable query
// is split as is.
func QueryParameters(rawQuery string) []project.Parameter {
	if rawQuery == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(rawQuery)
	if err != nil {
		decoded = rawQuery
	}
	var out []project.Parameter
	for _, pair := range strings.Split(decoded, "&") {
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			out = append(out, project.Parameter{Name: name})
			continue
		}
		out = append(out, project.NewParameter(name, value))
	}
	return out
}

// DecodeBinary turns \xHH escapes into raw bytes and keeps everything else
// as its UTF-8 encoding.
func DecodeBinary(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && (s[i+1] == 'x' || s[i+1] == 'X') {
			if hi, ok := hexNibble(s[i+2]); ok {
				if lo, ok := hexNibble(s[i+3]); ok {
					out = append(out, hi<<4|lo)
					i += 3
					continue
				}
			}
		}
		out = append(out, s[i])
	}
	return out
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
