// Package slots owns the chain clock: the mapping between wall time, slots
// and epochs defined by the genesis timestamp and the chain's slot duration.
package slots

import (
	"time"

	"github.com/rustchain-network/rustchain/config/params"
)

// Slot is an index into chain time, one per BlockTimeSeconds.
type Slot uint64

// Epoch is a settlement window of EpochSlots slots.
type Epoch uint64

// SlotAt returns the slot active at the given wall time. Times before genesis
// clamp to slot 0.
func SlotAt(t time.Time) Slot {
	c := params.RustchainConfig()
	sec := t.Unix() - c.GenesisTimestamp
	if sec < 0 {
		return 0
	}
	return Slot(uint64(sec) / c.BlockTimeSeconds)
}

// CurrentSlot returns the slot active now.
func CurrentSlot() Slot {
	return SlotAt(time.Now())
}

// ToEpoch returns the epoch containing the given slot.
func ToEpoch(s Slot) Epoch {
	return Epoch(uint64(s) / params.RustchainConfig().EpochSlots)
}

// CurrentEpoch returns the epoch active now.
func CurrentEpoch() Epoch {
	return ToEpoch(CurrentSlot())
}

// EpochStart returns the first slot of an epoch.
func EpochStart(e Epoch) Slot {
	return Slot(uint64(e) * params.RustchainConfig().EpochSlots)
}

// EpochEnd returns the last slot of an epoch.
func EpochEnd(e Epoch) Slot {
	return EpochStart(e+1) - 1
}

// StartTime returns the wall time at which the given slot begins.
func StartTime(s Slot) time.Time {
	c := params.RustchainConfig()
	return time.Unix(c.GenesisTimestamp+int64(uint64(s)*c.BlockTimeSeconds), 0)
}

// GenesisTime returns the configured genesis as wall time.
func GenesisTime() time.Time {
	return time.Unix(params.RustchainConfig().GenesisTimestamp, 0)
}

// SinceGenesis returns how far past genesis the given time is, clamped at 0.
func SinceGenesis(t time.Time) time.Duration {
	d := t.Sub(GenesisTime())
	if d < 0 {
		return 0
	}
	return d
}
