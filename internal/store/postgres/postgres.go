// Package postgres provides a PostgreSQL-backed document store for
// deployments where several processes share one ledger.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schoolpaypro/ledger/internal/store"
)

const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL.
type Store struct {
	db *sqlx.DB
}

type row struct {
	Data      string    `db:"data"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

// New connects to databaseURL and creates the documents table if needed.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_documents (
			key TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Get reads the document under key.
func (s *Store) Get(ctx context.Context, key string) (store.Document, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT data::text AS data, version, updated_at FROM ledger_documents WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("reading document %s: %w", key, err)
	}
	return store.Document{Key: key, Data: []byte(r.Data), Version: r.Version, UpdatedAt: r.UpdatedAt}, nil
}

// Put writes data under key if expectedVersion matches.
func (s *Store) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (store.Document, error) {
	docs, err := s.PutAll(ctx, []store.Write{{Key: key, Data: data, ExpectedVersion: expectedVersion}})
	if err != nil {
		return store.Document{}, err
	}
	return docs[0], nil
}

// PutAll writes every document in one transaction. Existing rows are locked
// in key order for the duration of the checks, so two batches over the same
// keys cannot deadlock.
func (s *Store) PutAll(ctx context.Context, writes []store.Write) ([]store.Document, error) {
	if err := store.CheckWrites(writes); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	order := make([]int, len(writes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return writes[order[a]].Key < writes[order[b]].Key })

	current := make([]int64, len(writes))
	for _, i := range order {
		w := writes[i]
		err := tx.GetContext(ctx, &current[i], `SELECT version FROM ledger_documents WHERE key = $1 FOR UPDATE`, w.Key)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reading version of %s: %w", w.Key, err)
		}
		if err := store.CheckVersion(w.Key, w.ExpectedVersion, current[i]); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	out := make([]store.Document, len(writes))
	for _, i := range order {
		w := writes[i]
		doc := store.Document{
			Key:       w.Key,
			Data:      append([]byte(nil), w.Data...),
			Version:   current[i] + 1,
			UpdatedAt: now,
		}
		if current[i] == 0 {
			// Plain INSERT: a concurrent first write surfaces as a unique violation.
			_, err = tx.ExecContext(ctx,
				`INSERT INTO ledger_documents (key, data, version, updated_at) VALUES ($1, $2::jsonb, $3, $4)`,
				w.Key, string(w.Data), doc.Version, doc.UpdatedAt)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE ledger_documents SET data = $2::jsonb, version = $3, updated_at = $4 WHERE key = $1`,
				w.Key, string(w.Data), doc.Version, doc.UpdatedAt)
		}
		if isUniqueViolation(err) {
			return nil, &store.ConflictError{Key: w.Key, Expected: w.ExpectedVersion, Actual: current[i] + 1}
		}
		if err != nil {
			return nil, fmt.Errorf("writing document %s: %w", w.Key, err)
		}
		out[i] = doc
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Delete removes the document under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_documents WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}
