package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/lrconv/internal/diag"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
)

func writeSnapshot(t *testing.T, dir, name, content string) {
	t.Helper()
	data := filepath.Join(dir, "data")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(data, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRecordedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSnapshot(t, dir, "t1.inf", "[t1]\nRequestHeaderFile=t1_RequestHeader.htm\nRequestBodyFile=NONE\nResponseHeaderFile=\nFileName1=t1.htm\n")

	s := NewSession(Options{ProjectDir: dir})
	rec := s.RecordedFiles(lrscript.MethodCall{Name: "web_url", Parameters: []string{`"Snapshot=t1.inf"`}})
	if rec == nil {
		t.Fatalf("expected recorded files")
	}
	data := filepath.Join(dir, "data")
	if rec.RequestHeader != filepath.Join(data, "t1_RequestHeader.htm") {
		t.Fatalf("unexpected request header file %q", rec.RequestHeader)
	}
	if rec.RequestBody != "" || rec.ResponseHeader != "" {
		t.Fatalf("NONE and empty values must be absent: %+v", rec)
	}
	if rec.ResponseBody != filepath.Join(data, "t1.htm") {
		t.Fatalf("unexpected response body file %q", rec.ResponseBody)
	}
}

func TestRecordedFilesAbsent(t *testing.T) {
	t.Parallel()

	rep := diag.New(nil)
	s := NewSession(Options{ProjectDir: t.TempDir(), Reporter: rep})

	if rec := s.RecordedFiles(lrscript.MethodCall{Name: "web_url", Parameters: []string{`"URL=http://x/"`}}); rec != nil {
		t.Fatalf("expected nil without snapshot, got %+v", rec)
	}
	if len(rep.Warnings()) != 0 {
		t.Fatalf("no snapshot is not a problem")
	}

	if rec := s.RecordedFiles(lrscript.MethodCall{Name: "web_url", Parameters: []string{`"Snapshot=missing.inf"`}}); rec != nil {
		t.Fatalf("expected nil for unreadable metadata, got %+v", rec)
	}
	if len(rep.Warnings()) != 1 {
		t.Fatalf("expected a warning for unreadable metadata, got %v", rep.Warnings())
	}
}
