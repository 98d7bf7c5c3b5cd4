// Package memory provides an in-memory document store for tests and
// throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schoolpaypro/ledger/internal/store"
)

// Store keeps documents in a map.
type Store struct {
	mu   sync.RWMutex
	docs map[string]store.Document
}

// New creates an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]store.Document)}
}

// Get returns a copy of the document under key.
func (s *Store) Get(_ context.Context, key string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return doc, nil
}

// Put stores data under key if expectedVersion matches.
func (s *Store) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (store.Document, error) {
	docs, err := s.PutAll(ctx, []store.Write{{Key: key, Data: data, ExpectedVersion: expectedVersion}})
	if err != nil {
		return store.Document{}, err
	}
	return docs[0], nil
}

// PutAll stores every write under one lock once all versions match.
func (s *Store) PutAll(_ context.Context, writes []store.Write) ([]store.Document, error) {
	if err := store.CheckWrites(writes); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if err := store.CheckVersion(w.Key, w.ExpectedVersion, s.docs[w.Key].Version); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	out := make([]store.Document, 0, len(writes))
	for _, w := range writes {
		doc := store.Document{
			Key:       w.Key,
			Data:      append([]byte(nil), w.Data...),
			Version:   s.docs[w.Key].Version + 1,
			UpdatedAt: now,
		}
		s.docs[w.Key] = doc
		out = append(out, doc)
	}
	return out, nil
}

// Delete removes the document under key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
