// Package metastore persists synthesized class metadata between runs, so a
// later incremental run can see the fields of classes it did not re-analyze.
package metastore

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"typewatch/internal/engine/sem"
)

const sqliteDriverName = "sqlite"

type Store struct {
	db         *sql.DB
	projectKey string
	loadStmt   *sql.Stmt

	cacheMu sync.RWMutex
	cache   map[string]sem.Metadata
}

func Open(path, projectKey string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("metadata store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("metadata store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create metadata store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metadata store %q: %w", cleanPath, err)
	}

	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	loadStmt, err := db.Prepare(`SELECT payload
FROM class_metadata
WHERE project_key = ? AND class_fullname = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare load stmt: %w", err)
	}

	return &Store{
		db:         db,
		projectKey: key,
		loadStmt:   loadStmt,
		cache:      make(map[string]sem.Metadata),
	}, nil
}

func migrateSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS class_metadata (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  project_key    TEXT    NOT NULL,
  module_name    TEXT    NOT NULL,
  class_fullname TEXT    NOT NULL,
  payload        BLOB    NOT NULL,
  updated_at     INTEGER NOT NULL DEFAULT (unixepoch()),
  UNIQUE(project_key, class_fullname)
);
CREATE INDEX IF NOT EXISTS idx_class_metadata_module
  ON class_metadata(project_key, module_name);

CREATE TABLE IF NOT EXISTS analysis_runs (
  run_id       TEXT    PRIMARY KEY,
  project_key  TEXT    NOT NULL,
  modules      INTEGER NOT NULL,
  diagnostics  INTEGER NOT NULL,
  passes       INTEGER NOT NULL,
  duration_ms  INTEGER NOT NULL,
  created_at   INTEGER NOT NULL DEFAULT (unixepoch())
);
`)
	if err != nil {
		return fmt.Errorf("ensure metadata schema: %w", err)
	}
	return nil
}

// SaveClass upserts the metadata for one class. Empty metadata deletes the
// row so stale synthesis does not survive an edit that removed it. Watch
// mode re-saves every class after each batch, so an upsert whose payload
// matches the stored one is skipped.
func (s *Store) SaveClass(module, fullname string, meta sem.Metadata) error {
	if meta.IsEmpty() {
		_, err := s.db.Exec(`DELETE FROM class_metadata WHERE project_key = ? AND class_fullname = ?`,
			s.projectKey, fullname)
		if err != nil {
			return fmt.Errorf("delete metadata for %q: %w", fullname, err)
		}
		s.cacheMu.Lock()
		delete(s.cache, fullname)
		s.cacheMu.Unlock()
		return nil
	}

	payload, err := sem.MarshalMetadata(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata for %q: %w", fullname, err)
	}
	if existing, ok, loadErr := s.LoadClass(fullname); loadErr == nil && ok {
		if prev, marshalErr := sem.MarshalMetadata(existing); marshalErr == nil && bytes.Equal(prev, payload) {
			return nil
		}
	}
	_, err = s.db.Exec(`INSERT INTO class_metadata (project_key, module_name, class_fullname, payload, updated_at)
VALUES (?, ?, ?, ?, unixepoch())
ON CONFLICT(project_key, class_fullname)
DO UPDATE SET module_name = excluded.module_name, payload = excluded.payload, updated_at = excluded.updated_at`,
		s.projectKey, module, fullname, payload)
	if err != nil {
		return fmt.Errorf("save metadata for %q: %w", fullname, err)
	}

	s.cacheMu.Lock()
	s.cache[fullname] = meta
	s.cacheMu.Unlock()
	return nil
}

// LoadClass returns the stored metadata for a class fullname, if any.
func (s *Store) LoadClass(fullname string) (sem.Metadata, bool, error) {
	s.cacheMu.RLock()
	if meta, ok := s.cache[fullname]; ok {
		s.cacheMu.RUnlock()
		return meta, true, nil
	}
	s.cacheMu.RUnlock()

	var payload []byte
	err := s.loadStmt.QueryRow(s.projectKey, fullname).Scan(&payload)
	if err == sql.ErrNoRows {
		return sem.Metadata{}, false, nil
	}
	if err != nil {
		return sem.Metadata{}, false, fmt.Errorf("load metadata for %q: %w", fullname, err)
	}

	meta, err := sem.UnmarshalMetadata(payload)
	if err != nil {
		return sem.Metadata{}, false, fmt.Errorf("unmarshal metadata for %q: %w", fullname, err)
	}
	s.cacheMu.Lock()
	s.cache[fullname] = meta
	s.cacheMu.Unlock()
	return meta, true, nil
}

// PruneModules deletes rows for modules no longer part of the project.
func (s *Store) PruneModules(keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, m := range keep {
		keepSet[m] = true
	}

	rows, err := s.db.Query(`SELECT DISTINCT module_name FROM class_metadata WHERE project_key = ?`, s.projectKey)
	if err != nil {
		return fmt.Errorf("list metadata modules: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan module name: %w", err)
		}
		if !keepSet[name] {
			stale = append(stale, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate metadata modules: %w", err)
	}

	for _, name := range stale {
		if _, err := s.db.Exec(`DELETE FROM class_metadata WHERE project_key = ? AND module_name = ?`,
			s.projectKey, name); err != nil {
			return fmt.Errorf("prune metadata for module %q: %w", name, err)
		}
	}
	if len(stale) > 0 {
		s.cacheMu.Lock()
		s.cache = make(map[string]sem.Metadata)
		s.cacheMu.Unlock()
	}
	return nil
}

// RunRecord summarizes one completed analysis run.
type RunRecord struct {
	RunID       string
	Modules     int
	Diagnostics int
	Passes      int
	Duration    time.Duration
}

// RecordRun persists a run summary and returns its generated id.
func (s *Store) RecordRun(rec RunRecord) (string, error) {
	id := rec.RunID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO analysis_runs (run_id, project_key, modules, diagnostics, passes, duration_ms)
VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.projectKey, rec.Modules, rec.Diagnostics, rec.Passes, rec.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

func (s *Store) Close() error {
	if s.loadStmt != nil {
		_ = s.loadStmt.Close()
	}
	return s.db.Close()
}
