package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Put(ctx, "K", []byte(`"abc"`), 0)
	require.NoError(t, err)

	doc, err := s.Get(ctx, "K")
	require.NoError(t, err)
	doc.Data[1] = 'X'

	again, err := s.Get(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(again.Data))
}
