// Package storetest holds the behavioural tests every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/store"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "MISSING")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create and read", func(t *testing.T) {
		doc, err := s.Put(ctx, "DOC_A", []byte(`{"a":1}`), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Version)

		got, err := s.Get(ctx, "DOC_A")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got.Data))
		assert.Equal(t, int64(1), got.Version)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("create twice conflicts", func(t *testing.T) {
		_, err := s.Put(ctx, "DOC_A", []byte(`{"a":2}`), 0)
		assert.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("compare and swap", func(t *testing.T) {
		doc, err := s.Put(ctx, "DOC_A", []byte(`{"a":2}`), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Version)

		_, err = s.Put(ctx, "DOC_A", []byte(`{"a":3}`), 1)
		var conflict *store.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, int64(1), conflict.Expected)
		assert.Equal(t, int64(2), conflict.Actual)

		got, err := s.Get(ctx, "DOC_A")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":2}`, string(got.Data), "rejected write leaves the document untouched")
	})

	t.Run("unconditional write", func(t *testing.T) {
		doc, err := s.Put(ctx, "DOC_A", []byte(`{"a":4}`), store.AnyVersion)
		require.NoError(t, err)
		assert.Equal(t, int64(3), doc.Version)

		doc, err = s.Put(ctx, "DOC_B", []byte(`[]`), store.AnyVersion)
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Version)
	})

	t.Run("scoped keys", func(t *testing.T) {
		key := store.Key("FINANCIAL_YEAR_CLOSE", "school-1", "2025/2026")
		_, err := s.Put(ctx, key, []byte(`{"isClosed":true}`), 0)
		require.NoError(t, err)
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, got.Key)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "DOC_B"))
		_, err := s.Get(ctx, "DOC_B")
		assert.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, s.Delete(ctx, "DOC_B"), "deleting twice is fine")

		doc, err := s.Put(ctx, "DOC_B", []byte(`[1]`), 0)
		require.NoError(t, err, "a deleted key can be created again")
		assert.Equal(t, int64(1), doc.Version)
	})

	t.Run("batch writes", func(t *testing.T) {
		docs, err := s.PutAll(ctx, []store.Write{
			{Key: "BATCH_A", Data: []byte(`[1]`), ExpectedVersion: 0},
			{Key: "BATCH_B", Data: []byte(`[2]`), ExpectedVersion: 0},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "BATCH_A", docs[0].Key)
		assert.Equal(t, int64(1), docs[0].Version)
		assert.Equal(t, "BATCH_B", docs[1].Key)
		assert.Equal(t, int64(1), docs[1].Version)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		_, err := s.PutAll(ctx, []store.Write{
			{Key: "BATCH_A", Data: []byte(`[10]`), ExpectedVersion: 1},
			{Key: "BATCH_B", Data: []byte(`[20]`), ExpectedVersion: 7},
		})
		var conflict *store.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "BATCH_B", conflict.Key)

		a, err := s.Get(ctx, "BATCH_A")
		require.NoError(t, err)
		assert.JSONEq(t, `[1]`, string(a.Data), "the matching write is not applied alone")
		assert.Equal(t, int64(1), a.Version)
	})

	t.Run("batch rejects repeated keys", func(t *testing.T) {
		_, err := s.PutAll(ctx, []store.Write{
			{Key: "BATCH_A", Data: []byte(`[1]`), ExpectedVersion: store.AnyVersion},
			{Key: "BATCH_A", Data: []byte(`[2]`), ExpectedVersion: store.AnyVersion},
		})
		require.Error(t, err)
		_, err = s.PutAll(ctx, nil)
		require.Error(t, err)
	})
}

// RunConcurrent has a and b, two handles on the same storage, race to
// increment one counter document. Every increment must land: a writer
// either succeeds or gets ErrVersionConflict and retries.
func RunConcurrent(t *testing.T, a, b store.Store) {
	t.Helper()
	ctx := context.Background()
	const (
		key     = "COUNTER"
		writers = 4
		rounds  = 10
	)

	increment := func(s store.Store) error {
		for {
			var n int
			var version int64
			doc, err := s.Get(ctx, key)
			switch {
			case err == nil:
				if err := json.Unmarshal(doc.Data, &n); err != nil {
					return err
				}
				version = doc.Version
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
			_, err = s.Put(ctx, key, []byte(strconv.Itoa(n+1)), version)
			if errors.Is(err, store.ErrVersionConflict) {
				continue
			}
			return err
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers*rounds)
	for w := 0; w < writers; w++ {
		s := a
		if w%2 == 1 {
			s = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if err := increment(s); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := a.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers*rounds), string(doc.Data))
	assert.Equal(t, int64(writers*rounds), doc.Version)
}
