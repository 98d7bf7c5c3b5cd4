// Package jsonfile stores each document as an indented JSON file in a
// directory. Writes go to a uniquely named temporary file that is renamed
// over the target, so a crash mid-write never leaves a truncated document
// behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/schoolpaypro/ledger/internal/store"
)

// envelope is the on-disk form of a document.
type envelope struct {
	Key       string          `json:"key"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`
}

// LockFile is the name of the lock file guarding a document directory.
const LockFile = ".lock"

const lockRetry = 10 * time.Millisecond

// Store is a directory of JSON documents. Every operation holds an advisory
// lock on the directory's lock file, so several processes may share one
// directory: version checks and renames of one writer never interleave with
// another's.
type Store struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// New opens (creating if needed) a document directory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &Store{dir: dir, lock: flock.New(filepath.Join(dir, LockFile))}, nil
}

// Dir returns the directory holding the documents.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// acquire takes the in-process mutex and then the directory lock. The
// returned func releases both.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("locking %s: %w", s.dir, err)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Warn("unlocking document store", "dir", s.dir, "error", err)
		}
		s.mu.Unlock()
	}, nil
}

// Get reads the document under key.
func (s *Store) Get(ctx context.Context, key string) (store.Document, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return store.Document{}, err
	}
	defer release()
	env, err := s.read(key)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{Key: key, Data: []byte(env.Data), Version: env.Version, UpdatedAt: env.UpdatedAt}, nil
}

func (s *Store) read(key string) (envelope, error) {
	var env envelope
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return env, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return env, fmt.Errorf("reading document %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("parsing document %s: %w", key, err)
	}
	return env, nil
}

// Put writes data under key if expectedVersion matches. data must be JSON.
func (s *Store) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (store.Document, error) {
	docs, err := s.PutAll(ctx, []store.Write{{Key: key, Data: data, ExpectedVersion: expectedVersion}})
	if err != nil {
		return store.Document{}, err
	}
	return docs[0], nil
}

// PutAll checks every version, stages every document in a temp file and only
// then renames them into place. A failed rename puts back the documents
// already replaced.
func (s *Store) PutAll(ctx context.Context, writes []store.Write) ([]store.Document, error) {
	if err := store.CheckWrites(writes); err != nil {
		return nil, err
	}
	for _, w := range writes {
		if !json.Valid(w.Data) {
			return nil, fmt.Errorf("document %s: data is not valid JSON", w.Key)
		}
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	prev := make([]*envelope, len(writes))
	for i, w := range writes {
		var current int64
		cur, err := s.read(w.Key)
		switch {
		case err == nil:
			current = cur.Version
			prev[i] = &cur
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		if err := store.CheckVersion(w.Key, w.ExpectedVersion, current); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	out := make([]store.Document, len(writes))
	tmps := make([]string, len(writes))
	defer func() {
		for _, tmp := range tmps {
			if tmp != "" {
				os.Remove(tmp)
			}
		}
	}()
	for i, w := range writes {
		var current int64
		if prev[i] != nil {
			current = prev[i].Version
		}
		env := envelope{
			Key:       w.Key,
			Version:   current + 1,
			UpdatedAt: now,
			Data:      json.RawMessage(append([]byte(nil), w.Data...)),
		}
		tmp, err := s.stage(w.Key, env)
		if err != nil {
			return nil, err
		}
		tmps[i] = tmp
		out[i] = store.Document{Key: w.Key, Data: []byte(env.Data), Version: env.Version, UpdatedAt: now}
	}

	for i, w := range writes {
		if err := os.Rename(tmps[i], s.path(w.Key)); err != nil {
			s.rollback(writes[:i], prev[:i])
			return nil, fmt.Errorf("replacing document %s: %w", w.Key, err)
		}
		tmps[i] = ""
	}
	return out, nil
}

// stage writes env to a fresh temp file next to its target and returns the
// temp file's path.
func (s *Store) stage(key string, env envelope) (string, error) {
	f, err := os.CreateTemp(s.dir, url.PathEscape(key)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", key, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encoding document %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file for %s: %w", key, err)
	}
	return f.Name(), nil
}

// rollback restores documents already renamed by a failed PutAll. A nil
// previous envelope means the document did not exist.
func (s *Store) rollback(writes []store.Write, prev []*envelope) {
	for i, w := range writes {
		var err error
		if prev[i] == nil {
			err = os.Remove(s.path(w.Key))
		} else {
			var tmp string
			if tmp, err = s.stage(w.Key, *prev[i]); err == nil {
				if err = os.Rename(tmp, s.path(w.Key)); err != nil {
					os.Remove(tmp)
				}
			}
		}
		if err != nil {
			slog.Error("restoring document after failed batch", "key", w.Key, "error", err)
		}
	}
}

// Delete removes the document under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	err = os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}

// Close releases the directory lock file handle.
func (s *Store) Close() error {
	return s.lock.Close()
}
