package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id           TEXT PRIMARY KEY,
	converted_at INTEGER NOT NULL,
	project      TEXT NOT NULL,
	project_dir  TEXT NOT NULL,
	scripts      TEXT NOT NULL,
	output       TEXT NOT NULL DEFAULT '',
	format       TEXT NOT NULL DEFAULT '',
	servers      INTEGER NOT NULL DEFAULT 0,
	containers   INTEGER NOT NULL DEFAULT 0,
	pages        INTEGER NOT NULL DEFAULT 0,
	requests     INTEGER NOT NULL DEFAULT 0,
	cookies      INTEGER NOT NULL DEFAULT 0,
	warnings     INTEGER NOT NULL DEFAULT 0,
	errors       INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_conversions_time ON conversions(converted_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversions_dir ON conversions(project_dir);
`

const selectColumns = `id, converted_at, project, project_dir, scripts, output, format,
	servers, containers, pages, requests, cookies, warnings, errors, duration_ms`

// Entry is one recorded conversion run.
type Entry struct {
	ID          string        `json:"id"`
	ConvertedAt time.Time     `json:"convertedAt"`
	Project     string        `json:"project"`
	ProjectDir  string        `json:"projectDir"`
	Scripts     []string      `json:"scripts"`
	Output      string        `json:"output,omitempty"`
	Format      string        `json:"format,omitempty"`
	Servers     int           `json:"servers"`
	Containers  int           `json:"containers"`
	Pages       int           `json:"pages"`
	Requests    int           `json:"requests"`
	Cookies     int           `json:"cookies"`
	Warnings    int           `json:"warnings"`
	Errors      int           `json:"errors"`
	Duration    time.Duration `json:"duration"`
}

type Store struct {
	path       string
	maxEntries int
	db         *sql.DB
	mu         sync.Mutex
}

func NewStore(path string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &Store{path: path, maxEntries: maxEntries}
}

func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureOpenLocked(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errdef.Wrap(errdef.CodeHistory, err, "close history")
}

// Append records entry, filling a missing ID and timestamp, and drops the
// oldest rows beyond the configured maximum.
func (s *Store) Append(ctx context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(ctx); err != nil {
		return Entry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ConvertedAt.IsZero() {
		entry.ConvertedAt = time.Now()
	}
	entry.ConvertedAt = entry.ConvertedAt.UTC()
	entry.ProjectDir = cleanDir(entry.ProjectDir)

	scripts, err := json.Marshal(entry.Scripts)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "encode scripts")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "begin history write")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversions (
			id, converted_at, project, project_dir, scripts, output, format,
			servers, containers, pages, requests, cookies, warnings, errors, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ConvertedAt.UnixNano(),
		entry.Project,
		entry.ProjectDir,
		string(scripts),
		entry.Output,
		entry.Format,
		entry.Servers,
		entry.Containers,
		entry.Pages,
		entry.Requests,
		entry.Cookies,
		entry.Warnings,
		entry.Errors,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "insert history entry")
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM conversions WHERE id NOT IN (
			SELECT id FROM conversions ORDER BY converted_at DESC, id DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "prune history")
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "commit history write")
	}
	return entry, nil
}

// Entries lists newest first. A limit of zero or less returns everything.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM conversions ORDER BY converted_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	return scanEntries(rows)
}

func (s *Store) ByProject(ctx context.Context, dir string) ([]Entry, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM conversions WHERE project_dir = ?
		ORDER BY converted_at DESC, id DESC`,
		cleanDir(trimmed),
	)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	return scanEntries(rows)
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = ?`, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	return n > 0, nil
}

func (s *Store) ensureOpenLocked(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "open history")
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return errdef.Wrap(errdef.CodeHistory, err, "init history schema")
	}
	s.db = db
	return nil
}

func scanEntries(rows *sql.Rows) (_ []Entry, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeHistory, closeErr, "close history rows")
		}
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			convertedAt int64
			scripts     string
			durationMS  int64
		)
		if err := rows.Scan(
			&e.ID,
			&convertedAt,
			&e.Project,
			&e.ProjectDir,
			&scripts,
			&e.Output,
			&e.Format,
			&e.Servers,
			&e.Containers,
			&e.Pages,
			&e.Requests,
			&e.Cookies,
			&e.Warnings,
			&e.Errors,
			&durationMS,
		); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "scan history entry")
		}
		e.ConvertedAt = time.Unix(0, convertedAt).UTC()
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(scripts), &e.Scripts); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "decode scripts of %s", e.ID)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "read history")
	}
	return entries, nil
}

func cleanDir(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Clean(dir)
}
