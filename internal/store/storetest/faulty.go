package storetest

import (
	"context"
	"strings"
	"sync"

	"github.com/schoolpaypro/ledger/internal/store"
)

// Faulty wraps a Store and fails reads or writes of keys starting with a
// given prefix, for exercising error paths.
type Faulty struct {
	store.Store

	mu        sync.Mutex
	getPrefix string
	putPrefix string
	err       error
}

// NewFaulty wraps s. Nothing fails until FailGet or FailPut is called.
func NewFaulty(s store.Store) *Faulty {
	return &Faulty{Store: s}
}

// FailGet makes Get of keys starting with prefix return err.
func (f *Faulty) FailGet(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getPrefix, f.err = prefix, err
}

// FailPut makes Put and PutAll touching keys starting with prefix return err.
func (f *Faulty) FailPut(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putPrefix, f.err = prefix, err
}

// Heal stops all failures.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getPrefix, f.putPrefix, f.err = "", "", nil
}

func (f *Faulty) failing(write bool, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := f.getPrefix
	if write {
		prefix = f.putPrefix
	}
	if prefix != "" && strings.HasPrefix(key, prefix) {
		return f.err
	}
	return nil
}

func (f *Faulty) Get(ctx context.Context, key string) (store.Document, error) {
	if err := f.failing(false, key); err != nil {
		return store.Document{}, err
	}
	return f.Store.Get(ctx, key)
}

func (f *Faulty) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (store.Document, error) {
	if err := f.failing(true, key); err != nil {
		return store.Document{}, err
	}
	return f.Store.Put(ctx, key, data, expectedVersion)
}

func (f *Faulty) PutAll(ctx context.Context, writes []store.Write) ([]store.Document, error) {
	for _, w := range writes {
		if err := f.failing(true, w.Key); err != nil {
			return nil, err
		}
	}
	return f.Store.PutAll(ctx, writes)
}
