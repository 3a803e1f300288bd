package vars

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

type quoteMode int

const (
	quoteModeNone quoteMode = iota
	quoteModeSingle
	quoteModeDouble
)

// LoadMappingFile reads a dotenv-style file of OLD=new lines.
func LoadMappingFile(path string) (m Mapping, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "open mapping file %s", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeFilesystem, closeErr, "close mapping file %s", path)
		}
	}()
	return ParseMapping(f, path)
}

func ParseMapping(r io.Reader, path string) (Mapping, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	m := make(Mapping)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}

		key, rawValue, err := parseAssignment(trimmed, lineNumber)
		if err != nil {
			return nil, err
		}
		value, err := parseValue(rawValue, lineNumber)
		if err != nil {
			return nil, err
		}
		if _, dup := m[key]; dup {
			return nil, errdef.New(
				errdef.CodeParse,
				"mapping line %d: variable %q mapped twice",
				lineNumber,
				key,
			)
		}
		m[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read mapping file %s", path)
	}
	return m, nil
}

func parseAssignment(line string, lineNumber int) (string, string, error) {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "export ") || strings.HasPrefix(lower, "export\t") {
		line = strings.TrimSpace(line[len("export"):])
	}

	idx := strings.IndexRune(line, '=')
	if idx < 0 {
		return "", "", errdef.New(errdef.CodeParse, "mapping line %d: expected NAME=value", lineNumber)
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", errdef.New(errdef.CodeParse, "mapping line %d: missing name", lineNumber)
	}
	return key, line[idx+1:], nil
}

func parseValue(raw string, lineNumber int) (string, error) {
	trimmed := strings.TrimLeft(raw, " \t")
	if trimmed == "" {
		return "", errdef.New(errdef.CodeParse, "mapping line %d: empty target name", lineNumber)
	}
	switch trimmed[0] {
	case '"':
		return parseQuoted(trimmed, quoteModeDouble, lineNumber)
	case '\'':
		return parseQuoted(trimmed, quoteModeSingle, lineNumber)
	default:
		return stripInlineComment(trimmed), nil
	}
}

func parseQuoted(input string, mode quoteMode, lineNumber int) (string, error) {
	quote := byte('"')
	if mode == quoteModeSingle {
		quote = '\''
	}

	var b strings.Builder
	for i := 1; i < len(input); i++ {
		ch := input[i]
		if ch == '\\' && mode == quoteModeDouble {
			if i+1 >= len(input) {
				return "", errdef.New(errdef.CodeParse, "mapping line %d: unfinished escape", lineNumber)
			}
			i++
			b.WriteByte(input[i])
			continue
		}
		if ch == quote {
			rest := strings.TrimSpace(input[i+1:])
			if rest != "" && rest[0] != '#' && rest[0] != ';' {
				return "", errdef.New(
					errdef.CodeParse,
					"mapping line %d: unexpected content after quoted value",
					lineNumber,
				)
			}
			return b.String(), nil
		}
		b.WriteByte(ch)
	}
	return "", errdef.New(errdef.CodeParse, "mapping line %d: unterminated quoted value", lineNumber)
}

func stripInlineComment(value string) string {
	inWhitespace := false
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case ' ', '\t':
			inWhitespace = true
		case '#', ';':
			if i == 0 || inWhitespace {
				return strings.TrimSpace(value[:i])
			}
			inWhitespace = false
		default:
			inWhitespace = false
		}
	}
	return strings.TrimSpace(value)
}
