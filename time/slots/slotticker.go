package slots

import (
	"time"

	"github.com/rustchain-network/rustchain/config/params"
)

// Ticker is a convenience interface for a channel that ticks on slot
// boundaries.
type Ticker interface {
	// C returns the channel on which slot numbers are delivered.
	C() <-chan Slot
	// Done stops the ticker goroutine.
	Done()
}

// SlotTicker is a special ticker for the chain clock. Assuming the genesis
// time of slot 0 is known, it ticks exactly on every slot boundary.
type SlotTicker struct {
	c    chan Slot
	done chan struct{}
}

// C returns the ticker channel. Call Done when finished.
func (s *SlotTicker) C() <-chan Slot {
	return s.c
}

// Done should be called to clean up the ticker.
func (s *SlotTicker) Done() {
	go func() {
		s.done <- struct{}{}
	}()
}

// NewSlotTicker starts and returns a new SlotTicker instance using the active
// chain config for genesis time and slot duration.
func NewSlotTicker() *SlotTicker {
	ticker := &SlotTicker{
		c:    make(chan Slot),
		done: make(chan struct{}),
	}
	ticker.start(GenesisTime(), slotDuration(), time.Since, time.Until, time.After)
	return ticker
}

// NewEpochTicker starts a ticker that fires on epoch boundaries instead of
// slot boundaries. The settlement worker listens to it so an epoch settles as
// soon as it elapses.
func NewEpochTicker() *SlotTicker {
	ticker := &SlotTicker{
		c:    make(chan Slot),
		done: make(chan struct{}),
	}
	ticker.start(GenesisTime(), params.EpochDuration(), time.Since, time.Until, time.After)
	return ticker
}

func slotDuration() time.Duration {
	return time.Duration(params.RustchainConfig().BlockTimeSeconds) * time.Second
}

func (s *SlotTicker) start(
	genesisTime time.Time,
	d time.Duration,
	since, until func(time.Time) time.Duration,
	after func(time.Duration) <-chan time.Time,
) {
	go func() {
		sinceGenesis := since(genesisTime)

		var nextTickTime time.Time
		var slot Slot
		if sinceGenesis < d {
			// Wait until the chain starts.
			nextTickTime = genesisTime
			slot = 0
		} else {
			nextTick := sinceGenesis.Truncate(d) + d
			nextTickTime = genesisTime.Add(nextTick)
			slot = Slot(nextTick / d)
		}

		for {
			waitTime := until(nextTickTime)
			select {
			case <-after(waitTime):
				s.c <- slot
				slot++
				nextTickTime = nextTickTime.Add(d)
			case <-s.done:
				return
			}
		}
	}()
}
