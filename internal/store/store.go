// Package store persists generated sources by model fingerprint so
// unchanged schema and behavior pairs skip regeneration.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/vmgen/internal/emit"
)

// ErrNotFound is returned when no artifact has the fingerprint.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the generated output of one view-model.
type Artifact struct {
	Fingerprint uint64
	Class       string
	Files       []emit.File
	Created     time.Time
}

// Store is a SQLite artifact store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		fingerprint TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		created INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		fingerprint TEXT NOT NULL REFERENCES artifacts(fingerprint) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		content BLOB NOT NULL,
		PRIMARY KEY (fingerprint, seq)
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func key(fp uint64) string { return fmt.Sprintf("%016x", fp) }

// Put stores a, replacing any artifact with the same fingerprint.
func (s *Store) Put(ctx context.Context, a Artifact) error {
	if a.Created.IsZero() {
		a.Created = time.Now()
	}
	k := key(a.Fingerprint)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE fingerprint = ?`, k); err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (fingerprint, class, created) VALUES (?, ?, ?)`,
		k, a.Class, a.Created.UnixNano()); err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO files (fingerprint, seq, name, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, f := range a.Files {
		if _, err := stmt.ExecContext(ctx, k, i, f.Name, f.Content); err != nil {
			return fmt.Errorf("put %s/%s: %w", k, f.Name, err)
		}
	}
	return tx.Commit()
}

// Get returns the artifact with fingerprint fp.
func (s *Store) Get(ctx context.Context, fp uint64) (*Artifact, error) {
	k := key(fp)
	a := &Artifact{Fingerprint: fp}
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT class, created FROM artifacts WHERE fingerprint = ?`, k).
		Scan(&a.Class, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", k, err)
	}
	a.Created = time.Unix(0, created)

	rows, err := s.db.QueryContext(ctx, `SELECT name, content FROM files WHERE fingerprint = ? ORDER BY seq`, k)
	if err != nil {
		return nil, fmt.Errorf("get %s files: %w", k, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f emit.File
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return nil, err
		}
		a.Files = append(a.Files, f)
	}
	return a, rows.Err()
}

// Entry summarizes a stored artifact.
type Entry struct {
	Fingerprint uint64
	Class       string
	Created     time.Time
}

// List returns every stored artifact, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, class, created FROM artifacts ORDER BY created DESC, fingerprint`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var k string
		var created int64
		var e Entry
		if err := rows.Scan(&k, &e.Class, &created); err != nil {
			return nil, err
		}
		if e.Fingerprint, err = strconv.ParseUint(k, 16, 64); err != nil {
			return nil, fmt.Errorf("bad fingerprint %q: %w", k, err)
		}
		e.Created = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
