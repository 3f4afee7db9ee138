package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func TestConsumeChallenge_OneShot(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveChallenge(ctx, "nonce-1", "m-1", now.Add(2*time.Minute)))

	minerID, err := store.ConsumeChallenge(ctx, "nonce-1", now)
	require.NoError(t, err)
	assert.Equal(t, "m-1", minerID)

	// Consumed exactly once.
	_, err = store.ConsumeChallenge(ctx, "nonce-1", now)
	require.Equal(t, iface.ErrChallengeInvalid, err)
}

func TestConsumeChallenge_ExpiryBoundary(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Unix(10_000, 0)

	// expires_at == now is already expired.
	require.NoError(t, store.SaveChallenge(ctx, "at-now", "", now))
	_, err := store.ConsumeChallenge(ctx, "at-now", now)
	require.Equal(t, iface.ErrChallengeInvalid, err)

	// expires_at == now+1 is still live.
	require.NoError(t, store.SaveChallenge(ctx, "now-plus-one", "", now.Add(time.Second)))
	_, err = store.ConsumeChallenge(ctx, "now-plus-one", now)
	require.NoError(t, err)
}

func TestConsumeChallenge_Unknown(t *testing.T) {
	store := setupStore(t)
	_, err := store.ConsumeChallenge(context.Background(), "never-issued", time.Now())
	require.Equal(t, iface.ErrChallengeInvalid, err)
}

func TestMarkNonceUsed_ReplayConflict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	require.NoError(t, store.MarkNonceUsed(ctx, "m-1", "n-1", exp))
	require.Equal(t, iface.ErrNonceReplay, store.MarkNonceUsed(ctx, "m-1", "n-1", exp))
	// A different miner with the same nonce value is a distinct pair.
	require.NoError(t, store.MarkNonceUsed(ctx, "m-2", "n-1", exp))
}

func TestPruneNonces(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveChallenge(ctx, "stale", "", now.Add(-time.Minute)))
	require.NoError(t, store.SaveChallenge(ctx, "live", "", now.Add(time.Minute)))
	pruned, err := store.PruneNonces(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	// The live challenge survives.
	_, err = store.ConsumeChallenge(ctx, "live", now)
	require.NoError(t, err)
}
