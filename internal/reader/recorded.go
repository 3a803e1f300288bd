package reader

import (
	"path/filepath"

	"github.com/unkn0wn-root/lrconv/internal/kvfile"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

const (
	dataDirName         = "data"
	snapshotParam       = "Snapshot"
	recordedAbsent      = "NONE"
	keyRequestHeader    = "RequestHeaderFile"
	keyRequestBody      = "RequestBodyFile"
	keyResponseHeader   = "ResponseHeaderFile"
	keyResponseBodyFile = "FileName1"
)

// RecordedFiles reads the snapshot metadata named by the Snapshot parameter
// of call. It returns nil when there is no snapshot or it cannot be read.
func (s *Session) RecordedFiles(call lrscript.MethodCall) *project.RecordedFiles {
	snapshot, _ := s.syn.Value(call.Parameters, snapshotParam)
	if snapshot == "" {
		return nil
	}
	dataDir := filepath.Join(s.projectDir, dataDirName)
	meta, err := kvfile.Load(filepath.Join(dataDir, snapshot))
	if err != nil {
		s.rep.Warnf("%s: recorded files unavailable: %v", call.Name, err)
		return nil
	}
	return &project.RecordedFiles{
		RequestHeader:  recordedPath(meta, keyRequestHeader, dataDir),
		RequestBody:    recordedPath(meta, keyRequestBody, dataDir),
		ResponseHeader: recordedPath(meta, keyResponseHeader, dataDir),
		ResponseBody:   recordedPath(meta, keyResponseBodyFile, dataDir),
	}
}

func recordedPath(meta kvfile.File, key, dataDir string) string {
	v := meta.Get(key)
	if v == "" || v == recordedAbsent {
		return ""
	}
	return filepath.Join(dataDir, v)
}
