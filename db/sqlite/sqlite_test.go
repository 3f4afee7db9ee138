package sqlite

import (
	"context"
	"testing"

	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/testing/require"
)

var _ iface.Database = (*Store)(nil)

func setupStore(t *testing.T) *Store {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestNewStore_SchemaIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	// Reopening re-applies the schema and migrations without error.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Credit(ctx, "RTCwallet", 42, 0, iface.ReasonEpochReward))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	amount, _, err := store.Balance(ctx, "RTCwallet")
	require.NoError(t, err)
	require.Equal(t, uint64(42), amount)
}
