/*
Package sqlite provides a SQLite-backed document store.

Documents live in a single table keyed by document key. Every write runs in
a transaction that reads the current version and refuses the write when it
does not match the caller's expected version, so concurrent processes sharing
one database file get compare-and-swap semantics instead of silent
last-writer-wins.

The database is opened in WAL mode: readers never block the single writer.
Transactions begin IMMEDIATE, so two writers queue on the busy timeout
rather than one of them failing halfway through.

USAGE:

	s, err := sqlite.New("./data/ledger.db")
	if err != nil {
		return err
	}
	defer s.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/schoolpaypro/ledger/internal/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get reads the document under key.
func (s *Store) Get(ctx context.Context, key string) (store.Document, error) {
	var (
		data      string
		version   int64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, updated_at FROM documents WHERE key = ?`, key,
	).Scan(&data, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("reading document %s: %w", key, err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, updatedAt)
	return store.Document{Key: key, Data: []byte(data), Version: version, UpdatedAt: ts}, nil
}

// Put writes data under key if expectedVersion matches.
func (s *Store) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (store.Document, error) {
	docs, err := s.PutAll(ctx, []store.Write{{Key: key, Data: data, ExpectedVersion: expectedVersion}})
	if err != nil {
		return store.Document{}, err
	}
	return docs[0], nil
}

// PutAll writes every document in one transaction. The transaction takes
// the write lock up front, so a racing handle waits and then sees the new
// versions instead of failing with SQLITE_BUSY.
func (s *Store) PutAll(ctx context.Context, writes []store.Write) ([]store.Document, error) {
	if err := store.CheckWrites(writes); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current := make([]int64, len(writes))
	for i, w := range writes {
		err := tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE key = ?`, w.Key).Scan(&current[i])
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reading version of %s: %w", w.Key, err)
		}
		if err := store.CheckVersion(w.Key, w.ExpectedVersion, current[i]); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	out := make([]store.Document, 0, len(writes))
	for i, w := range writes {
		doc := store.Document{
			Key:       w.Key,
			Data:      append([]byte(nil), w.Data...),
			Version:   current[i] + 1,
			UpdatedAt: now,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (key, data, version, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET data = excluded.data, version = excluded.version, updated_at = excluded.updated_at
		`, w.Key, string(w.Data), doc.Version, doc.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("writing document %s: %w", w.Key, err)
		}
		out = append(out, doc)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Delete removes the document under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}
