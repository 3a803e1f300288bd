package vars

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

func TestMappingLookup(t *testing.T) {
	t.Parallel()

	m := Mapping{"BaseUrl": "base_url", "blank": "  "}
	if got := m.Lookup("BaseUrl"); got != "base_url" {
		t.Fatalf("expected mapped name, got %q", got)
	}
	if got := m.Lookup("other"); got != "other" {
		t.Fatalf("expected fallback to original name, got %q", got)
	}
	if got := m.Lookup("blank"); got != "blank" {
		t.Fatalf("blank target must fall back, got %q", got)
	}
	var nilMap Mapping
	if got := nilMap.Lookup("x"); got != "x" {
		t.Fatalf("nil mapping must return the name, got %q", got)
	}
}

func TestMappingMerge(t *testing.T) {
	t.Parallel()

	base := Mapping{"a": "1", "b": "2"}
	merged := base.Merge(Mapping{"b": "3"})
	if merged["a"] != "1" || merged["b"] != "3" {
		t.Fatalf("unexpected merge %v", merged)
	}
	if base["b"] != "2" {
		t.Fatalf("merge must not mutate receiver")
	}
	if names := merged.Names(); strings.Join(names, ",") != "a,b" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestParseMapping(t *testing.T) {
	t.Parallel()

	src := heredoc.Doc(`
		# renamed correlation values
		export SessionId = session_id
		UserName="user name" ; trailing comment
		Token='tok#1'
		Host=host_var # note
	`)
	m, err := ParseMapping(strings.NewReader(src), "map.env")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Mapping{
		"SessionId": "session_id",
		"UserName":  "user name",
		"Token":     "tok#1",
		"Host":      "host_var",
	}
	if len(m) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), m)
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("entry %s: expected %q, got %q", k, v, m[k])
		}
	}
}

func TestParseMappingErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no equals":  "Name\n",
		"empty key":  "=x\n",
		"empty name": "A=\n",
		"duplicate":  "A=b\nA=c\n",
		"unclosed":   "A=\"b\n",
		"trailing":   "A=\"b\" c\n",
	}
	for name, src := range cases {
		if _, err := ParseMapping(strings.NewReader(src), "m.env"); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if errdef.CodeOf(err) != errdef.CodeParse {
			t.Fatalf("%s: expected parse code, got %q", name, errdef.CodeOf(err))
		}
	}
}

func TestLoadMappingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vars.env")
	if err := os.WriteFile(path, []byte("BaseUrl=base_url\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := LoadMappingFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Lookup("BaseUrl") != "base_url" {
		t.Fatalf("unexpected mapping %v", m)
	}

	_, err = LoadMappingFile(filepath.Join(dir, "missing.env"))
	if errdef.CodeOf(err) != errdef.CodeFilesystem {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}
