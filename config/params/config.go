// Package params defines the chain parameters the rustchain node needs to
// agree on with its peers, such as the genesis timestamp, epoch geometry and
// the per-epoch reward pot.
package params

import "time"

// ChainConfig contains constant configs for the node to participate in the
// rustchain network. Monetary amounts are integer micro-RTC (uRTC),
// 1 RTC = 1_000_000 uRTC.
type ChainConfig struct {
	// Clock geometry.
	GenesisTimestamp int64  // Unix seconds of slot 0.
	BlockTimeSeconds uint64 // Seconds per slot.
	EpochSlots       uint64 // Slots per epoch.

	// Rewards and fees.
	PerEpochPotURTC   uint64 // Fixed pot distributed at each epoch settlement.
	MinWithdrawalURTC uint64 // Withdrawals at or below this are rejected.
	WithdrawalFeeURTC uint64 // Flat fee charged on withdrawals.

	// Attestation pipeline.
	ChallengeTTL       time.Duration // Lifetime of an issued challenge nonce.
	AttestRecentTTL    time.Duration // Window for the /api/miners projection.
	MinerSubmitPeriod  time.Duration // Min spacing between submits per miner.
	IPSubmitsPerMinute int64         // Token bucket capacity per client IP.

	// Ledger lifecycle.
	PendingThresholdURTC uint64        // Transfers above this park as pending.
	PendingConfirmDelay  time.Duration // Maturity delay for pending transfers.

	// Background workers.
	SettleInterval time.Duration // Settlement worker tick.
	GossipInterval time.Duration // P2P gossip loop tick.
	MessageExpiry  time.Duration // Gossip envelope lifetime.

	// Antiquity weighting. The time-aged bonus decays linearly from
	// TimeAgedBonusStart at genesis to 1.0 at TimeAgedHorizon.
	TimeAgedBonusStart float64
	TimeAgedHorizon    int64 // Unix seconds.
}

// AntiquityTier classifies validated hardware by age.
type AntiquityTier string

// Tiers ordered oldest to newest, plus the emulator penalty bucket.
const (
	TierAncient  AntiquityTier = "ancient"
	TierClassic  AntiquityTier = "classic"
	TierVintage  AntiquityTier = "vintage"
	TierModern   AntiquityTier = "modern"
	TierEmulated AntiquityTier = "emulated"
)

// AntiquityMultiplier returns the base reward multiplier for a tier. The
// mapping is injective and bounded in [0.03125, 3.0]; emulated hardware
// carries a 32x penalty.
func AntiquityMultiplier(tier AntiquityTier) float64 {
	switch tier {
	case TierAncient:
		return 3.0
	case TierClassic:
		return 1.5
	case TierVintage:
		return 1.2
	case TierEmulated:
		return 0.03125
	default:
		return 1.0
	}
}

// MicroRTCPerRTC is the subunit scale of the native token.
const MicroRTCPerRTC = 1_000_000

var mainnetChainConfig = &ChainConfig{
	GenesisTimestamp:     1735689600, // 2025-01-01T00:00:00Z
	BlockTimeSeconds:     600,
	EpochSlots:           144,
	PerEpochPotURTC:      1_500_000,
	MinWithdrawalURTC:    100_000,
	WithdrawalFeeURTC:    10_000,
	ChallengeTTL:         120 * time.Second,
	AttestRecentTTL:      24 * time.Hour,
	MinerSubmitPeriod:    60 * time.Second,
	IPSubmitsPerMinute:   30,
	PendingThresholdURTC: 100 * MicroRTCPerRTC,
	PendingConfirmDelay:  time.Hour,
	SettleInterval:       5 * time.Minute,
	GossipInterval:       30 * time.Second,
	MessageExpiry:        300 * time.Second,
	TimeAgedBonusStart:   1.5,
	TimeAgedHorizon:      1893456000, // 2030-01-01T00:00:00Z
}

var chainConfig = mainnetChainConfig

// RustchainConfig retrieves the active chain config.
func RustchainConfig() *ChainConfig {
	return chainConfig
}

// OverrideRustchainConfig replaces the active config. Used by the env loader
// at boot and by tests.
func OverrideRustchainConfig(c *ChainConfig) {
	chainConfig = c
}

// Copy returns a value copy suitable for mutation before override.
func (c *ChainConfig) Copy() *ChainConfig {
	config := *c
	return &config
}
