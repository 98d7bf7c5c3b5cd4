// Package persist moves ledger collections between memory and the document
// store: it serializes on save, re-hydrates on load, and announces every
// write so other views can refresh.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/id"
	"github.com/schoolpaypro/ledger/internal/store"
)

// Document names. Each is scoped per school with store.Key.
const (
	KeyAccounts  = "SCHOOL_CATALOG_ACCOUNTS"
	KeySuppliers = "SCHOOL_SUPPLIERS_ACCOUNTS"
	KeyTreasury  = "SCHOOL_TREASURY_ACCOUNTS"
	KeyJournal   = "SCHOOL_JOURNAL_ENTRIES"
)

type seen struct {
	version int64
	content []byte // compacted JSON
}

// Bridge remembers, per key, the version and content it last read or wrote.
// Saves are compare-and-swap against that version, so a write made by
// another process in between surfaces as store.ErrVersionConflict instead of
// being overwritten.
type Bridge struct {
	store  store.Store
	pub    broadcast.Publisher
	origin string

	mu   sync.Mutex
	last map[string]seen
}

// New creates a Bridge. pub may be nil.
func New(s store.Store, pub broadcast.Publisher) *Bridge {
	return &Bridge{
		store:  s,
		pub:    pub,
		origin: id.New("view"),
		last:   make(map[string]seen),
	}
}

// Origin identifies this bridge in the events it publishes.
func (b *Bridge) Origin() string {
	return b.origin
}

// Store returns the underlying document store.
func (b *Bridge) Store() store.Store {
	return b.store
}

// Doc pairs a document key with the value it is encoded from on save, or
// decoded into on load.
type Doc struct {
	Key   string
	Value any
}

// Load decodes the document under key into v. found is false when the key
// has no document yet; v is left untouched in that case.
func (b *Bridge) Load(ctx context.Context, key string, v any) (found bool, err error) {
	f, err := b.fetch(ctx, key)
	if err != nil {
		return false, err
	}
	if f.found {
		if err := json.Unmarshal(f.data, v); err != nil {
			return false, fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	b.remember(key, f.version, f.content)
	return f.found, nil
}

// LoadAll decodes every document into its Value. The versions are recorded
// only when all of them were read, so a partial failure leaves the bridge
// expecting what the caller's state was built from.
func (b *Bridge) LoadAll(ctx context.Context, docs ...Doc) error {
	got := make([]fetched, len(docs))
	for i, d := range docs {
		f, err := b.fetch(ctx, d.Key)
		if err != nil {
			return err
		}
		if f.found {
			if err := json.Unmarshal(f.data, d.Value); err != nil {
				return fmt.Errorf("decoding %s: %w", d.Key, err)
			}
		}
		got[i] = f
	}
	for i, d := range docs {
		b.remember(d.Key, got[i].version, got[i].content)
	}
	return nil
}

// Save encodes v and writes it under key, expecting the version last seen
// by this bridge. On success a change event is published; publish failures
// are logged, not returned.
func (b *Bridge) Save(ctx context.Context, key string, v any) error {
	return b.SaveAll(ctx, Doc{Key: key, Value: v})
}

// SaveAll writes every document in one store batch: either all of them
// replace the versions this bridge last saw, or none is written. One change
// event is published per document.
func (b *Bridge) SaveAll(ctx context.Context, docs ...Doc) error {
	writes := make([]store.Write, len(docs))
	b.mu.Lock()
	for i, d := range docs {
		writes[i] = store.Write{Key: d.Key, ExpectedVersion: b.last[d.Key].version}
	}
	b.mu.Unlock()
	for i, d := range docs {
		data, err := json.Marshal(d.Value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", d.Key, err)
		}
		writes[i].Data = data
	}

	saved, err := b.store.PutAll(ctx, writes)
	if err != nil {
		return fmt.Errorf("saving %s: %w", keysOf(docs), err)
	}
	for i, doc := range saved {
		b.remember(doc.Key, doc.Version, compact(writes[i].Data))
	}

	if b.pub == nil {
		return nil
	}
	for _, doc := range saved {
		e := broadcast.Event{Key: doc.Key, Version: doc.Version, Origin: b.origin, At: time.Now().UTC()}
		if err := b.pub.Publish(ctx, e); err != nil {
			slog.Warn("broadcasting change", "key", doc.Key, "error", err)
		}
	}
	return nil
}

// Refresh re-reads key and decodes it into v only when the stored content
// differs from what this bridge last read or wrote. changed reports whether
// v was replaced.
func (b *Bridge) Refresh(ctx context.Context, key string, v any) (changed bool, err error) {
	flags, err := b.RefreshAll(ctx, Doc{Key: key, Value: v})
	if err != nil {
		return false, err
	}
	return flags[0], nil
}

// RefreshAll re-reads every document and decodes the ones whose content
// changed. changed[i] reports whether docs[i].Value was replaced. Versions
// are recorded only when every document was read, so on error the caller
// keeps its state and the next save still detects the other writer.
func (b *Bridge) RefreshAll(ctx context.Context, docs ...Doc) (changed []bool, err error) {
	changed = make([]bool, len(docs))
	got := make([]fetched, len(docs))
	for i, d := range docs {
		f, err := b.fetch(ctx, d.Key)
		if err != nil {
			return nil, err
		}
		got[i] = f
		if !f.found {
			continue
		}
		b.mu.Lock()
		prev := b.last[d.Key]
		b.mu.Unlock()
		if prev.version == f.version || bytes.Equal(prev.content, f.content) {
			continue
		}
		if err := json.Unmarshal(f.data, d.Value); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", d.Key, err)
		}
		changed[i] = true
	}
	for i, d := range docs {
		if got[i].found {
			b.remember(d.Key, got[i].version, got[i].content)
		}
	}
	return changed, nil
}

type fetched struct {
	found   bool
	version int64
	data    []byte
	content []byte
}

func (b *Bridge) fetch(ctx context.Context, key string) (fetched, error) {
	doc, err := b.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fetched{}, nil
	}
	if err != nil {
		return fetched{}, err
	}
	return fetched{found: true, version: doc.Version, data: doc.Data, content: compact(doc.Data)}, nil
}

func keysOf(docs []Doc) string {
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	return strings.Join(keys, ", ")
}

// Version returns the version of key this bridge last read or wrote.
func (b *Bridge) Version(key string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[key].version
}

func (b *Bridge) remember(key string, version int64, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[key] = seen{version: version, content: content}
}

func compact(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append([]byte(nil), data...)
	}
	return buf.Bytes()
}
