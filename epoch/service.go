// Package epoch runs the settlement side of proof-of-antiquity: it enrolls
// accepted miners into the current epoch's reward set and periodically settles
// every elapsed epoch by splitting the fixed pot across enrollment weights.
package epoch

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/rustchain-network/rustchain/async"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/time/slots"
)

// Config options for the epoch service.
type Config struct {
	DB iface.Database
}

// Service enrolls miners and settles elapsed epochs.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs the epoch service.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("epoch service requires a database")
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{cfg: cfg, ctx: ctx, cancel: cancel}, nil
}

// Start launches the settlement loop: an epoch-boundary ticker settles each
// epoch as soon as it elapses, and the interval pass retries anything a
// failed tick left behind.
func (s *Service) Start() {
	go s.run(slots.NewEpochTicker())
	async.RunEvery(s.ctx, params.RustchainConfig().SettleInterval, s.settlePass)
}

func (s *Service) run(ticker slots.Ticker) {
	defer ticker.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C():
			s.settlePass()
		}
	}
}

func (s *Service) settlePass() {
	if err := s.SettleDue(s.ctx); err != nil {
		log.WithError(err).Error("Settlement pass failed")
	}
}

// Stop halts the settlement loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil.
func (s *Service) Status() error {
	return nil
}

// EnrollCurrent adds a miner to the reward set of the epoch containing now.
// Re-enrollment within the same epoch keeps the highest weight seen.
func (s *Service) EnrollCurrent(ctx context.Context, minerPK string, tier params.AntiquityTier, now time.Time) error {
	e := slots.ToEpoch(slots.SlotAt(now))
	return s.cfg.DB.Enroll(ctx, &iface.Enrollment{
		Epoch:   uint64(e),
		MinerPK: minerPK,
		Weight:  Weight(tier, now),
	})
}

// SettleDue settles every epoch that has fully elapsed and is not yet
// settled. Settlement is idempotent: epochs another path already closed are
// skipped, and a failure on one epoch stops the pass so ordering is preserved.
func (s *Service) SettleDue(ctx context.Context) error {
	current := uint64(slots.CurrentEpoch())
	// Enrolled epochs sitting below the settled high-water mark come first:
	// a force settle of a later epoch must not strand earlier reward sets.
	stranded, err := s.cfg.DB.UnsettledEnrolledEpochsBelow(ctx, current)
	if err != nil {
		return errors.Wrap(err, "could not list unsettled epochs")
	}
	for _, e := range stranded {
		if err := s.settleOne(ctx, e); err != nil {
			return errors.Wrapf(err, "could not settle epoch %d", e)
		}
	}
	var from uint64
	if last, ok, err := s.cfg.DB.LastSettledEpoch(ctx); err != nil {
		return errors.Wrap(err, "could not read last settled epoch")
	} else if ok {
		from = last + 1
	}
	for e := from; e < current; e++ {
		if err := s.settleOne(ctx, e); err != nil {
			return errors.Wrapf(err, "could not settle epoch %d", e)
		}
	}
	return nil
}

// ForceSettle settles one specific epoch now, regardless of the worker
// schedule. Used by the admin settle endpoint; already-settled epochs are a
// no-op.
func (s *Service) ForceSettle(ctx context.Context, e uint64) error {
	return s.settleOne(ctx, e)
}

func (s *Service) settleOne(ctx context.Context, e uint64) error {
	enrollments, err := s.cfg.DB.Enrollments(ctx, e)
	if err != nil {
		return err
	}
	pot := params.RustchainConfig().PerEpochPotURTC
	shares := ComputeShares(pot, enrollments)
	if err := s.cfg.DB.SettleEpoch(ctx, e, shares); err != nil {
		if errors.Is(err, iface.ErrEpochSettled) {
			return nil
		}
		return err
	}
	log.WithField("epoch", e).WithField("miners", len(shares)).Info("Settled epoch")
	return nil
}

// Info is the public epoch summary.
type Info struct {
	Epoch            uint64 `json:"epoch"`
	Slot             uint64 `json:"slot"`
	SlotInEpoch      uint64 `json:"slot_in_epoch"`
	EpochStartUnix   int64  `json:"epoch_start"`
	EpochEndUnix     int64  `json:"epoch_end"`
	EnrolledMiners   uint64 `json:"enrolled_miners"`
	LastSettledEpoch int64  `json:"last_settled_epoch"` // -1 before any settlement
	PotURTC          uint64 `json:"pot_urtc"`
}

// CurrentInfo summarizes the epoch containing now.
func (s *Service) CurrentInfo(ctx context.Context) (*Info, error) {
	c := params.RustchainConfig()
	slot := uint64(slots.CurrentSlot())
	e := slot / c.EpochSlots
	enrolled, err := s.cfg.DB.EnrolledCount(ctx, e)
	if err != nil {
		return nil, err
	}
	lastSettled := int64(-1)
	if last, ok, err := s.cfg.DB.LastSettledEpoch(ctx); err != nil {
		return nil, err
	} else if ok {
		lastSettled = int64(last)
	}
	return &Info{
		Epoch:            e,
		Slot:             slot,
		SlotInEpoch:      slot % c.EpochSlots,
		EpochStartUnix:   slots.StartTime(slots.EpochStart(slots.Epoch(e))).Unix(),
		EpochEndUnix:     slots.StartTime(slots.EpochStart(slots.Epoch(e) + 1)).Unix(),
		EnrolledMiners:   enrolled,
		LastSettledEpoch: lastSettled,
		PotURTC:          c.PerEpochPotURTC,
	}, nil
}
