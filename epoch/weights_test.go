package epoch

import (
	"math"
	"testing"
	"time"

	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/testing/assert"
)

func TestTimeAgedBonus_LinearDecay(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	c := params.RustchainConfig().Copy()
	c.GenesisTimestamp = 1_000_000
	c.TimeAgedHorizon = 2_000_000
	c.TimeAgedBonusStart = 1.5
	params.OverrideRustchainConfig(c)

	assert.Equal(t, 1.5, TimeAgedBonus(time.Unix(999_000, 0)))
	assert.Equal(t, 1.5, TimeAgedBonus(time.Unix(1_000_000, 0)))
	assert.Equal(t, 1.25, TimeAgedBonus(time.Unix(1_500_000, 0)))
	assert.Equal(t, 1.0, TimeAgedBonus(time.Unix(2_000_000, 0)))
	assert.Equal(t, 1.0, TimeAgedBonus(time.Unix(3_000_000, 0)))
}

func TestWeight_CombinesTierAndBonus(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	c := params.RustchainConfig().Copy()
	c.GenesisTimestamp = 1_000_000
	c.TimeAgedHorizon = 2_000_000
	c.TimeAgedBonusStart = 1.5
	params.OverrideRustchainConfig(c)

	midpoint := time.Unix(1_500_000, 0)
	got := Weight(params.TierAncient, midpoint)
	if math.Abs(got-3.75) > 1e-9 {
		t.Fatalf("ancient weight at midpoint: got %f, want 3.75", got)
	}
	assert.Equal(t, 1.25, Weight(params.TierModern, midpoint))

	// After the horizon only the tier multiplier remains.
	late := time.Unix(3_000_000, 0)
	assert.Equal(t, 3.0, Weight(params.TierAncient, late))
	assert.Equal(t, 0.03125, Weight(params.TierEmulated, late))
}
