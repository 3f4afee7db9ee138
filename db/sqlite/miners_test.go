package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func TestBindHardware_AtMostOneMiner(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.BindHardware(ctx, "deadbeef", "M1"))
	// Same miner rebinding is a no-op.
	require.NoError(t, store.BindHardware(ctx, "deadbeef", "M1"))
	// A different miner conflicts.
	err := store.BindHardware(ctx, "deadbeef", "M2")
	require.Equal(t, iface.ErrHardwareBound, err)

	bound, err := store.BoundMiner(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "M1", bound)
}

func TestBoundMiner_Unknown(t *testing.T) {
	store := setupStore(t)
	_, err := store.BoundMiner(context.Background(), "cafebabe")
	require.Equal(t, iface.ErrNotFound, err)
}

func TestSaveAttestation_UpsertsByMiner(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	att := &iface.MinerAttestation{
		Miner: "RTCaaa", MinerID: "m-1", DeviceArch: "g4", DeviceFamily: "powermac",
		Tier: "classic", EntropyScore: 0.8, ArchScore: 0.9, TsOK: 100,
	}
	require.NoError(t, store.SaveAttestation(ctx, att))
	att.Tier = "vintage"
	att.TsOK = 200
	require.NoError(t, store.SaveAttestation(ctx, att))

	atts, err := store.RecentAttestations(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, 1, len(atts))
	assert.Equal(t, "vintage", atts[0].Tier)
	assert.Equal(t, int64(200), atts[0].TsOK)
}

func TestRecentAttestations_FiltersByTime(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	old := &iface.MinerAttestation{Miner: "RTCold", Tier: "modern", TsOK: 100}
	fresh := &iface.MinerAttestation{Miner: "RTCnew", Tier: "modern", TsOK: 5000}
	require.NoError(t, store.SaveAttestation(ctx, old))
	require.NoError(t, store.SaveAttestation(ctx, fresh))

	atts, err := store.RecentAttestations(ctx, time.Unix(1000, 0))
	require.NoError(t, err)
	require.Equal(t, 1, len(atts))
	assert.Equal(t, "RTCnew", atts[0].Miner)
}

func TestMergeAttestation_LastWriterWins(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	local := &iface.MinerAttestation{Miner: "RTCx", Tier: "classic", TsOK: 500}
	require.NoError(t, store.SaveAttestation(ctx, local))

	// Older remote row is ignored.
	changed, err := store.MergeAttestation(ctx, &iface.MinerAttestation{Miner: "RTCx", Tier: "modern", TsOK: 400})
	require.NoError(t, err)
	assert.Equal(t, false, changed)

	// Newer remote row wins.
	changed, err = store.MergeAttestation(ctx, &iface.MinerAttestation{Miner: "RTCx", Tier: "ancient", TsOK: 600})
	require.NoError(t, err)
	assert.Equal(t, true, changed)

	atts, err := store.AttestationsSince(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, len(atts))
	assert.Equal(t, "ancient", atts[0].Tier)
}

func TestBlockedWallets(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	blocked, err := store.IsWalletBlocked(ctx, "RTCbad")
	require.NoError(t, err)
	assert.Equal(t, false, blocked)

	require.NoError(t, store.BlockWallet(ctx, "RTCbad"))
	blocked, err = store.IsWalletBlocked(ctx, "RTCbad")
	require.NoError(t, err)
	assert.Equal(t, true, blocked)
}

func TestWalletForMiner(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.WalletForMiner(ctx, "m-1")
	require.Equal(t, iface.ErrNotFound, err)

	require.NoError(t, store.SaveAttestation(ctx, &iface.MinerAttestation{
		Miner: "RTCwallet1", MinerID: "m-1", Tier: "modern", TsOK: 10,
	}))
	wallet, err := store.WalletForMiner(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "RTCwallet1", wallet)
}
