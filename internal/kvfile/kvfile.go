// Package kvfile reads the key=value metadata files written next to
// recorded snapshots.
package kvfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

// File keeps values by case-sensitive key. Later lines override earlier ones.
type File map[string]string

// Get returns the value of key, or "" when absent.
func (f File) Get(key string) string {
	return f[key]
}

func Load(path string) (f File, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "open metadata file %s", path)
	}
	defer func() {
		if closeErr := fh.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeFilesystem, closeErr, "close metadata file %s", path)
		}
	}()
	return Parse(fh, path)
}

// Parse reads key=value (or key:value) lines. Blank lines, comments
// starting with '#', '!' or ';' and [section] headers are skipped.
func Parse(r io.Reader, path string) (File, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	out := make(File)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || isComment(line) || isSection(line) {
			continue
		}
		idx := strings.IndexAny(line, "=:")
		if idx < 0 {
			out[line] = ""
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read metadata file %s", path)
	}
	return out, nil
}

func isComment(line string) bool {
	switch line[0] {
	case '#', '!', ';':
		return true
	}
	return false
}

func isSection(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}
