package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Change reports one tracked input that differs from its last fingerprint.
type Change struct {
	Path    string
	Removed bool
}

type Options struct {
	Interval time.Duration
	// HashUnchanged hashes files even when modtime and size did not move.
	HashUnchanged bool
}

type fingerprint struct {
	mod     time.Time
	size    int64
	hash    string
	missing bool
}

// Watcher polls the inputs of a conversion: scripts, server definitions and
// variable files.
type Watcher struct {
	mu       sync.Mutex
	files    map[string]fingerprint
	interval time.Duration
	hashAll  bool
}

const defaultInterval = time.Second

func New(opts Options) *Watcher {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Watcher{
		files:    make(map[string]fingerprint),
		interval: interval,
		hashAll:  opts.HashUnchanged,
	}
}

// Add starts tracking paths. A path that does not exist yet is tracked as
// removed and reported once it appears.
func (w *Watcher) Add(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		fp, err := take(clean)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.files[clean] = fp
		w.mu.Unlock()
	}
	return nil
}

func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Scan compares every tracked file against its fingerprint and returns the
// changes sorted by path.
func (w *Watcher) Scan() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changes []Change
	for path, prev := range w.files {
		if !prev.missing && !w.hashAll && sameMeta(path, prev) {
			continue
		}
		next, err := take(path)
		if err != nil {
			// unreadable counts as removed until it can be read again
			next = fingerprint{missing: true}
		}
		w.files[path] = next
		switch {
		case prev.missing && next.missing:
		case next.missing:
			changes = append(changes, Change{Path: path, Removed: true})
		case prev.missing || next.hash != prev.hash:
			changes = append(changes, Change{Path: path})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// Run scans until ctx is done. Changes are held back until a scan comes back
// quiet so a save that touches several files triggers fn once.
func (w *Watcher) Run(ctx context.Context, fn func([]Change)) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	var pending []Change
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		changes := w.Scan()
		if len(changes) > 0 {
			pending = merge(pending, changes)
			continue
		}
		if len(pending) > 0 {
			fn(pending)
			pending = nil
		}
	}
}

func merge(into, changes []Change) []Change {
	idx := make(map[string]int, len(into))
	for i, c := range into {
		idx[c.Path] = i
	}
	for _, c := range changes {
		if i, ok := idx[c.Path]; ok {
			into[i] = c
			continue
		}
		idx[c.Path] = len(into)
		into = append(into, c)
	}
	return into
}

func sameMeta(path string, fp fingerprint) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(fp.mod) && info.Size() == fp.size
}

func take(path string) (fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fingerprint{missing: true}, nil
		}
		return fingerprint{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fingerprint{}, err
	}
	sum := sha256.Sum256(data)
	return fingerprint{
		mod:  info.ModTime(),
		size: info.Size(),
		hash: hex.EncodeToString(sum[:]),
	}, nil
}
