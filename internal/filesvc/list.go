package filesvc

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	extScript = ".c"
	// snapshots and recorded bodies live here
	dataDir = "data"

	initScript = "vuser_init"
	endScript  = "vuser_end"
)

type FileEntry struct {
	Name string
	Path string
}

func IsScriptFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == extScript
}

// ListScripts returns the scripts under root in run order: vuser_init
// first, vuser_end last, everything else by name in between.
func ListScripts(root string, recursive bool) ([]FileEntry, error) {
	var entries []FileEntry

	if recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == dataDir) {
					return filepath.SkipDir
				}
				return nil
			}
			if !IsScriptFile(d.Name()) {
				return nil
			}
			rel := d.Name()
			if r, relErr := filepath.Rel(root, path); relErr == nil {
				rel = r
			}
			entries = append(entries, FileEntry{Name: rel, Path: path})
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, entry := range dirEntries {
			if entry.IsDir() || !IsScriptFile(entry.Name()) {
				continue
			}
			entries = append(entries, FileEntry{Name: entry.Name(), Path: filepath.Join(root, entry.Name())})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := runRank(entries[i].Name), runRank(entries[j].Name)
		if ri != rj {
			return ri < rj
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func runRank(name string) int {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	switch strings.ToLower(base) {
	case initScript:
		return 0
	case endScript:
		return 2
	default:
		return 1
	}
}
