package epoch

import (
	"time"

	"github.com/rustchain-network/rustchain/config/params"
)

// TimeAgedBonus returns the early-network bonus factor at the given time. It
// decays linearly from TimeAgedBonusStart at genesis to 1.0 at the horizon and
// never drops below 1.0.
func TimeAgedBonus(now time.Time) float64 {
	c := params.RustchainConfig()
	start := c.TimeAgedBonusStart
	if start <= 1.0 {
		return 1.0
	}
	span := c.TimeAgedHorizon - c.GenesisTimestamp
	if span <= 0 {
		return 1.0
	}
	elapsed := now.Unix() - c.GenesisTimestamp
	if elapsed <= 0 {
		return start
	}
	if elapsed >= span {
		return 1.0
	}
	frac := float64(elapsed) / float64(span)
	return start - (start-1.0)*frac
}

// Weight computes a miner's enrollment weight: the antiquity multiplier of its
// validated tier scaled by the time-aged bonus.
func Weight(tier params.AntiquityTier, now time.Time) float64 {
	return params.AntiquityMultiplier(tier) * TimeAgedBonus(now)
}
