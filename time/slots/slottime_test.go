package slots

import (
	"testing"
	"time"

	"github.com/rustchain-network/rustchain/config/params"
)

func setClock(t *testing.T, genesis int64) {
	params.SetupTestConfigCleanup(t)
	c := params.RustchainConfig().Copy()
	c.GenesisTimestamp = genesis
	c.BlockTimeSeconds = 600
	c.EpochSlots = 144
	params.OverrideRustchainConfig(c)
}

func TestSlotAt(t *testing.T) {
	setClock(t, 1_000_000)
	tests := []struct {
		name string
		at   int64
		want Slot
	}{
		{"before genesis clamps to zero", 999_999, 0},
		{"at genesis", 1_000_000, 0},
		{"one second short of slot 1", 1_000_599, 0},
		{"slot boundary", 1_000_600, 1},
		{"mid chain", 1_000_000 + 600*1000 + 5, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlotAt(time.Unix(tt.at, 0)); got != tt.want {
				t.Errorf("SlotAt(%d) = %d, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestToEpoch(t *testing.T) {
	setClock(t, 0)
	if got := ToEpoch(0); got != 0 {
		t.Errorf("epoch of slot 0 = %d", got)
	}
	if got := ToEpoch(143); got != 0 {
		t.Errorf("epoch of slot 143 = %d", got)
	}
	if got := ToEpoch(144); got != 1 {
		t.Errorf("epoch of slot 144 = %d", got)
	}
	if got := ToEpoch(144*7 + 3); got != 7 {
		t.Errorf("epoch of slot %d = %d", 144*7+3, got)
	}
}

func TestEpochBounds(t *testing.T) {
	setClock(t, 0)
	if got := EpochStart(2); got != 288 {
		t.Errorf("EpochStart(2) = %d, want 288", got)
	}
	if got := EpochEnd(2); got != 431 {
		t.Errorf("EpochEnd(2) = %d, want 431", got)
	}
}

func TestStartTimeRoundTrip(t *testing.T) {
	setClock(t, 1_700_000_000)
	for _, s := range []Slot{0, 1, 144, 9999} {
		if got := SlotAt(StartTime(s)); got != s {
			t.Errorf("SlotAt(StartTime(%d)) = %d", s, got)
		}
	}
}
