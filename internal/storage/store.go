/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists storyboard snapshots in an embedded SQLite
// database: a rolling autosave history plus named bookmarks. Snapshots are
// opaque JSON blobs; layout rectangles are stored but remain a cache that
// a layout reset can always rebuild from size hints.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	applog "github.com/nupa0w0-hash/MangaGenPro/internal/log"
	"github.com/nupa0w0-hash/MangaGenPro/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DBFileName lives under the user data dir.
	DBFileName = "storyboards.sqlite"

	// schemaVersion tracks the snapshot database schema. Bump on breaking
	// schema changes and add a migration.
	schemaVersion = 1

	// autosaveKeep bounds the rolling autosave history.
	autosaveKeep = 20
)

// ErrNotFound is returned for a bookmark name with no stored snapshot.
var ErrNotFound = errors.New("storage: not found")

// Store is the snapshot database handle.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the snapshot database under dir.
func Open(dir string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(
		slog.String("dir", dir),
	)
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	path := filepath.Join(dir, DBFileName)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	l.Info("snapshot store ready", slog.String("path", path))
	return &Store{db: db, log: applog.WithComponent("storage")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS autosaves (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			board      BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			name       TEXT PRIMARY KEY,
			updated_at TEXT NOT NULL,
			board      BLOB NOT NULL
		);`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version'`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.ExecContext(ctx,
			`INSERT INTO meta(key, value) VALUES ('schema_version', ?), ('app_version', ?)`,
			fmt.Sprint(schemaVersion), version.Version)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case current > schemaVersion:
		return fmt.Errorf("snapshot database schema %d is newer than this build supports (%d)", current, schemaVersion)
	}
	return nil
}

// sanitizeForPersist normalizes transient state before a snapshot is
// written. A generating panel has no in-flight operation once the process
// is gone, so it is persisted as pending.
func sanitizeForPersist(sb domain.Storyboard) domain.Storyboard {
	out := sb.Clone()
	for i := range out.Panels {
		if out.Panels[i].Status == domain.StatusGenerating {
			out.Panels[i].Status = domain.StatusPending
			out.Panels[i].ImageRef = ""
		}
	}
	return out
}

// SaveAutosave appends a snapshot to the rolling autosave history and
// prunes rows beyond the keep limit.
func (s *Store) SaveAutosave(ctx context.Context, sb domain.Storyboard) error {
	blob, err := json.Marshal(sanitizeForPersist(sb))
	if err != nil {
		return fmt.Errorf("encode storyboard: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO autosaves(created_at, board) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339), blob); err != nil {
		return fmt.Errorf("autosave insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM autosaves WHERE id NOT IN (SELECT id FROM autosaves ORDER BY id DESC LIMIT ?)`,
		autosaveKeep); err != nil {
		return fmt.Errorf("autosave prune: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("autosave commit: %w", err)
	}
	s.log.Debug("autosaved", slog.String("title", sb.Title), slog.Int("panels", len(sb.Panels)))
	return nil
}

// LoadAutosave returns the most recent autosave snapshot. The second
// return value is false when no autosave exists yet.
func (s *Store) LoadAutosave(ctx context.Context) (domain.Storyboard, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT board FROM autosaves ORDER BY id DESC LIMIT 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Storyboard{}, false, nil
	}
	if err != nil {
		return domain.Storyboard{}, false, fmt.Errorf("load autosave: %w", err)
	}
	var sb domain.Storyboard
	if err := json.Unmarshal(blob, &sb); err != nil {
		return domain.Storyboard{}, false, fmt.Errorf("decode autosave: %w", err)
	}
	return sb, true, nil
}

// SaveBookmark stores a named snapshot, replacing any previous one of the
// same name.
func (s *Store) SaveBookmark(ctx context.Context, name string, sb domain.Storyboard) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("bookmark name is required")
	}
	blob, err := json.Marshal(sanitizeForPersist(sb))
	if err != nil {
		return fmt.Errorf("encode storyboard: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookmarks(name, updated_at, board) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at=excluded.updated_at, board=excluded.board`,
		name, time.Now().UTC().Format(time.RFC3339), blob)
	if err != nil {
		return fmt.Errorf("save bookmark %q: %w", name, err)
	}
	return nil
}

// LoadBookmark returns the snapshot stored under name.
func (s *Store) LoadBookmark(ctx context.Context, name string) (domain.Storyboard, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT board FROM bookmarks WHERE name = ?`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Storyboard{}, fmt.Errorf("bookmark %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return domain.Storyboard{}, fmt.Errorf("load bookmark %q: %w", name, err)
	}
	var sb domain.Storyboard
	if err := json.Unmarshal(blob, &sb); err != nil {
		return domain.Storyboard{}, fmt.Errorf("decode bookmark %q: %w", name, err)
	}
	return sb, nil
}

// BookmarkInfo is one row of the bookmark listing.
type BookmarkInfo struct {
	Name      string
	UpdatedAt time.Time
}

// ListBookmarks returns all bookmarks, most recently updated first.
func (s *Store) ListBookmarks(ctx context.Context) ([]BookmarkInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, updated_at FROM bookmarks ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()
	var out []BookmarkInfo
	for rows.Next() {
		var info BookmarkInfo
		var ts string
		if err := rows.Scan(&info.Name, &ts); err != nil {
			return nil, fmt.Errorf("list bookmarks: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteBookmark removes a named snapshot.
func (s *Store) DeleteBookmark(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete bookmark %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bookmark %q: %w", name, ErrNotFound)
	}
	return nil
}
