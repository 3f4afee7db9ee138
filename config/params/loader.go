package params

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Environment variables recognised by LoadFromEnv. These are chain-level
// parameters; process-level settings (db path, admin key) are CLI flags.
const (
	EnvGenesisTimestamp = "GENESIS_TIMESTAMP"
	EnvBlockTimeSeconds = "BLOCK_TIME_SECONDS"
	EnvEpochSlots       = "EPOCH_SLOTS"
	EnvPerEpochPot      = "PER_EPOCH_POT_URTC"
	EnvMinWithdrawal    = "MIN_WITHDRAWAL_URTC"
	EnvWithdrawalFee    = "WITHDRAWAL_FEE_URTC"
)

// LoadFromEnv applies chain parameter overrides from the process environment
// on top of the active config and installs the result.
func LoadFromEnv() error {
	c := RustchainConfig().Copy()
	if err := overrideInt64(EnvGenesisTimestamp, &c.GenesisTimestamp); err != nil {
		return err
	}
	if err := overrideUint64(EnvBlockTimeSeconds, &c.BlockTimeSeconds); err != nil {
		return err
	}
	if err := overrideUint64(EnvEpochSlots, &c.EpochSlots); err != nil {
		return err
	}
	if err := overrideUint64(EnvPerEpochPot, &c.PerEpochPotURTC); err != nil {
		return err
	}
	if err := overrideUint64(EnvMinWithdrawal, &c.MinWithdrawalURTC); err != nil {
		return err
	}
	if err := overrideUint64(EnvWithdrawalFee, &c.WithdrawalFeeURTC); err != nil {
		return err
	}
	if c.BlockTimeSeconds == 0 || c.EpochSlots == 0 {
		return errors.New("block time and epoch slots must be non-zero")
	}
	OverrideRustchainConfig(c)
	return nil
}

// EpochDuration is the wall-clock length of one epoch under the active config.
func EpochDuration() time.Duration {
	c := RustchainConfig()
	return time.Duration(c.BlockTimeSeconds*c.EpochSlots) * time.Second
}

func overrideUint64(key string, dst *uint64) error {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "could not parse %s", key)
	}
	*dst = v
	return nil
}

func overrideInt64(key string, dst *int64) error {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "could not parse %s", key)
	}
	*dst = v
	return nil
}
