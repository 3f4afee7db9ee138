// Package attestation implements the proof-of-antiquity attestation pipeline:
// challenge issuance, the ordered submission gate (blocklist, rate limit,
// challenge, replay, hardware binding, fingerprint, signature) and the commit
// that records an accepted attestation and enrolls the miner for rewards.
package attestation

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/rustchain-network/rustchain/async"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
)

// Enroller adds an accepted miner to the current epoch's reward set. The
// epoch service implements it; the indirection keeps this package from
// depending on settlement.
type Enroller interface {
	EnrollCurrent(ctx context.Context, minerPK string, tier params.AntiquityTier, now time.Time) error
}

// Config options for the attestation service.
type Config struct {
	DB             iface.Database
	Enroller       Enroller
	TrustedProxies []*net.IPNet
}

// Service handles attestation challenges and submissions.
type Service struct {
	cfg     *Config
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *submitLimiter
}

// New constructs the attestation service.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("attestation service requires a database")
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		limiter: newSubmitLimiter(),
	}, nil
}

// Start launches the nonce pruning loop.
func (s *Service) Start() {
	async.RunEvery(s.ctx, time.Minute, s.pruneOnce)
}

// Stop halts background work.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; the service has no degraded mode.
func (s *Service) Status() error {
	return nil
}

func (s *Service) pruneOnce() {
	n, err := s.cfg.DB.PruneNonces(s.ctx, time.Now())
	if err != nil {
		log.WithError(err).Error("Could not prune expired nonces")
		return
	}
	if n > 0 {
		log.WithField("pruned", n).Debug("Pruned expired nonces")
	}
}

// Challenge is an issued attestation challenge.
type Challenge struct {
	Nonce      string    `json:"nonce"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// IssueChallenge mints a single-use nonce bound to minerID.
func (s *Service) IssueChallenge(ctx context.Context, minerID string) (*Challenge, error) {
	nonce, err := rtc.RandomNonce(32)
	if err != nil {
		return nil, err
	}
	ttl := params.RustchainConfig().ChallengeTTL
	expiresAt := time.Now().Add(ttl)
	if err := s.cfg.DB.SaveChallenge(ctx, nonce, minerID, expiresAt); err != nil {
		return nil, errors.Wrap(err, "could not persist challenge")
	}
	challengesIssuedTotal.Inc()
	return &Challenge{Nonce: nonce, ExpiresAt: expiresAt, TTLSeconds: int64(ttl.Seconds())}, nil
}

// MinerInfo is one row of the public miner listing.
type MinerInfo struct {
	Miner               string  `json:"miner"`
	MinerID             string  `json:"miner_id"`
	HardwareType        string  `json:"hardware_type"`
	Tier                string  `json:"tier"`
	AntiquityMultiplier float64 `json:"antiquity_multiplier"`
	EntropyScore        float64 `json:"entropy_score"`
	LastAttestationUnix int64   `json:"last_attestation"`
}

// RecentMiners lists miners with an accepted attestation inside the recency
// window, ordered by wallet.
func (s *Service) RecentMiners(ctx context.Context) ([]*MinerInfo, error) {
	since := time.Now().Add(-params.RustchainConfig().AttestRecentTTL)
	atts, err := s.cfg.DB.RecentAttestations(ctx, since)
	if err != nil {
		return nil, err
	}
	out := make([]*MinerInfo, 0, len(atts))
	for _, a := range atts {
		out = append(out, &MinerInfo{
			Miner:               a.Miner,
			MinerID:             a.MinerID,
			HardwareType:        a.DeviceModel,
			Tier:                a.Tier,
			AntiquityMultiplier: params.AntiquityMultiplier(params.AntiquityTier(a.Tier)),
			EntropyScore:        a.EntropyScore,
			LastAttestationUnix: a.TsOK,
		})
	}
	return out, nil
}
