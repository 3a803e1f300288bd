package projectwriter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	udiff "github.com/aymanbagabas/go-udiff"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/lrconv/internal/project"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

type Options struct {
	Format            Format
	OverwriteExisting bool
	// HeaderComment is emitted as leading # lines in YAML output only.
	HeaderComment string
}

func WriteProject(ctx context.Context, p *project.Project, dst string, opts Options) error {
	if p == nil {
		return errors.New("writer: project is nil")
	}
	if strings.TrimSpace(dst) == "" {
		return errors.New("writer: destination path is empty")
	}

	content, err := Render(p, opts)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(dst, content, opts.OverwriteExisting)
}

func writeFile(dst string, content []byte, overwrite bool) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: create directory: %w", err)
	}

	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("writer: destination %s already exists", dst)
		}
	}

	tmp, err := os.CreateTemp(dir, "lrconv-*"+filepath.Ext(dst))
	if err != nil {
		return fmt.Errorf("writer: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writer: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("writer: rename temp file: %w", err)
	}
	return nil
}

func Render(p *project.Project, opts Options) ([]byte, error) {
	if p == nil {
		return nil, errors.New("writer: project is nil")
	}
	doc := buildDocument(p)

	var buf bytes.Buffer
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("writer: encode json: %w", err)
		}
	case FormatYAML, "":
		renderHeader(&buf, opts.HeaderComment)
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("writer: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("writer: encode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("writer: unsupported format %q", opts.Format)
	}
	return buf.Bytes(), nil
}

func renderHeader(b *bytes.Buffer, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("# ")
		b.WriteString(strings.TrimSpace(line))
		b.WriteString("\n")
	}
}

// Diff returns a unified diff between two renderings, or "" when equal.
func Diff(oldContent, newContent, name string) string {
	left := ensureTrailingNewline(oldContent)
	right := ensureTrailingNewline(newContent)
	if left == right {
		return ""
	}
	return udiff.Unified("a/"+name, "b/"+name, left, right)
}

// Preview diffs content against the file at dst. A missing file diffs
// against empty content.
func Preview(dst string, content []byte) (string, error) {
	existing, err := os.ReadFile(dst)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("writer: read %s: %w", dst, err)
	}
	return Diff(string(existing), string(content), filepath.Base(dst)), nil
}

func ensureTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
