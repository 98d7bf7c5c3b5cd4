// Package store defines the durable document store behind the ledger: JSON
// documents addressed by key, each carrying a version used for
// compare-and-swap writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a key has no document.
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when a write's expected version does not
	// match the stored one, i.e. another writer got there first.
	ErrVersionConflict = errors.New("document version conflict")
)

// AnyVersion disables the version check on Put.
const AnyVersion int64 = -1

// Document is one stored JSON document.
type Document struct {
	Key       string
	Data      []byte
	Version   int64 // 1 for the first write, +1 for each later one
	UpdatedAt time.Time
}

// Write is one document of a PutAll.
type Write struct {
	Key             string
	Data            []byte
	ExpectedVersion int64
}

// Store is a versioned key/document store.
//
// Put writes data under key when the stored version equals expectedVersion
// (0 meaning the key must not exist yet) and returns the new document.
// AnyVersion writes unconditionally.
//
// PutAll applies several writes as one unit: every expected version is
// checked before anything is written, and either all documents change or
// none do. The returned documents are in the order of writes.
type Store interface {
	Get(ctx context.Context, key string) (Document, error)
	Put(ctx context.Context, key string, data []byte, expectedVersion int64) (Document, error)
	PutAll(ctx context.Context, writes []Write) ([]Document, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key joins a document name and its scope parts: Key("X", "s1", "y") = "X__s1__y".
func Key(name string, scope ...string) string {
	return strings.Join(append([]string{name}, scope...), "__")
}

// ConflictError carries the versions involved in a rejected write.
type ConflictError struct {
	Key      string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s: expected version %d, found %d", e.Key, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error {
	return ErrVersionConflict
}

// CheckVersion returns a *ConflictError when a write expecting expected may
// not replace a document at actual (0 = absent).
func CheckVersion(key string, expected, actual int64) error {
	if expected == AnyVersion || expected == actual {
		return nil
	}
	return &ConflictError{Key: key, Expected: expected, Actual: actual}
}

// CheckWrites rejects an empty batch and a batch naming a key twice.
func CheckWrites(writes []Write) error {
	if len(writes) == 0 {
		return errors.New("no documents to write")
	}
	seen := make(map[string]bool, len(writes))
	for _, w := range writes {
		if seen[w.Key] {
			return fmt.Errorf("document %s written twice in one batch", w.Key)
		}
		seen[w.Key] = true
	}
	return nil
}
