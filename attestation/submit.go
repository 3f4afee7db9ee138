package attestation

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustchain-network/rustchain/attestation/fingerprint"
	"github.com/rustchain-network/rustchain/config/features"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
)

// SubmitResult is returned for an accepted attestation.
type SubmitResult struct {
	Miner        string  `json:"miner"`
	MinerID      string  `json:"miner_id"`
	Tier         string  `json:"tier"`
	Multiplier   float64 `json:"antiquity_multiplier"`
	EntropyScore float64 `json:"entropy_score"`
	ArchScore    float64 `json:"arch_score"`
	HardwareID   string  `json:"hardware_id"`
}

// ProcessSubmit runs the submission gate in its fixed order. The order is
// load-bearing: cheap checks run before expensive ones, and the replay mark
// happens before hardware binding so a bound-elsewhere rejection still burns
// the nonce.
func (s *Service) ProcessSubmit(ctx context.Context, req *SubmitRequest, clientIP string) (*SubmitResult, *SubmitError) {
	res, serr := s.processSubmit(ctx, req, clientIP)
	if serr != nil {
		submitRejectedTotal.WithLabelValues(serr.Code).Inc()
		log.WithFields(logrus.Fields{
			"minerID": req.MinerID,
			"code":    serr.Code,
		}).Debug("Rejected attestation submission")
		return nil, serr
	}
	submitAcceptedTotal.Inc()
	return res, nil
}

func (s *Service) processSubmit(ctx context.Context, req *SubmitRequest, clientIP string) (*SubmitResult, *SubmitError) {
	now := time.Now()

	// Blocklist.
	blocked, err := s.cfg.DB.IsWalletBlocked(ctx, req.Miner)
	if err != nil {
		return nil, internalErr(err)
	}
	if blocked {
		return nil, submitErr(http.StatusForbidden, CodeUnauthorized, "wallet is blocked")
	}

	// Per-IP rate limit. The per-miner limit is applied at commit so a
	// rejected submit reports its own failure, not a rate limit.
	if !s.limiter.allowIP(clientIP) {
		return nil, submitErr(http.StatusTooManyRequests, CodeRateLimit, "submission rate exceeded for client address")
	}

	// Challenge freshness. Consuming is atomic; a second submit with the same
	// nonce falls through to the replay table below.
	boundMiner, err := s.cfg.DB.ConsumeChallenge(ctx, req.Nonce, now)
	if err != nil && !errors.Is(err, iface.ErrChallengeInvalid) {
		return nil, internalErr(err)
	}
	if err == nil {
		if boundMiner != "" && boundMiner != req.MinerID {
			return nil, submitErr(http.StatusBadRequest, CodeChallengeMismatch, "challenge was issued to a different miner")
		}
		if req.Commitment != "" && req.Commitment != rtc.ChallengeCommitment(req.Nonce, req.Miner, req.MinerID) {
			return nil, submitErr(http.StatusBadRequest, CodeChallengeMismatch, "report commitment does not match challenge")
		}
	}
	challengeLive := err == nil

	// Replay. Marking is attempted even when the challenge already expired so
	// a replayed stale nonce reports as a replay, not a fresh expiry.
	replayTTL := params.RustchainConfig().ChallengeTTL
	if markErr := s.cfg.DB.MarkNonceUsed(ctx, req.MinerID, req.Nonce, now.Add(replayTTL)); markErr != nil {
		if errors.Is(markErr, iface.ErrNonceReplay) {
			return nil, submitErr(http.StatusConflict, CodeNonceReplay, "nonce already used")
		}
		return nil, internalErr(markErr)
	}
	if !challengeLive {
		return nil, submitErr(http.StatusBadRequest, CodeChallengeInvalid, "challenge nonce unknown or expired")
	}

	// Hardware binding, at most one miner per physical machine.
	hwID := HardwareID(req.Device.Model, req.Device.Arch, req.Device.Family, req.Device.Serial, req.firstMAC())
	if err := s.cfg.DB.BindHardware(ctx, hwID, req.MinerID); err != nil {
		if errors.Is(err, iface.ErrHardwareBound) {
			return nil, submitErr(http.StatusConflict, CodeHardwareBound, "hardware already bound to a different miner")
		}
		return nil, internalErr(err)
	}

	// Fingerprint validation.
	report := fingerprint.Parse(req.Fingerprint)
	verdict := fingerprint.Validate(report, req.Device)
	if !verdict.Passed {
		if strings.HasPrefix(verdict.Reason, "vm_detected") {
			return nil, submitErr(http.StatusForbidden, CodeVMDetected, verdict.Reason)
		}
		return nil, submitErr(http.StatusBadRequest, CodeFingerprintRejected, verdict.Reason)
	}

	// Signature over the canonical challenge payload. Optional for legacy
	// agents; mock mode only exists inside the test runtime environment.
	if req.Signature != "" && !features.Get().MockSignatures {
		if serr := s.verifySubmitSignature(req); serr != nil {
			return nil, serr
		}
	}

	// Per-miner spacing between accepted attestations.
	if !s.limiter.minerOpen(req.MinerID) {
		return nil, submitErr(http.StatusTooManyRequests, CodeRateLimit, "miner attested too recently")
	}

	// Commit.
	att := &iface.MinerAttestation{
		Miner:        req.Miner,
		MinerID:      req.MinerID,
		DeviceArch:   req.Device.Arch,
		DeviceFamily: req.Device.Family,
		DeviceModel:  req.Device.Model,
		Tier:         string(verdict.Tier),
		EntropyScore: verdict.EntropyScore,
		ArchScore:    verdict.ArchScore,
		TsOK:         now.Unix(),
	}
	if err := s.cfg.DB.SaveAttestation(ctx, att); err != nil {
		return nil, internalErr(err)
	}
	s.limiter.chargeMiner(req.MinerID)
	if len(req.MACs) > 0 {
		if err := s.cfg.DB.RecordMACs(ctx, req.Miner, req.MACs); err != nil {
			return nil, internalErr(err)
		}
	}
	if s.cfg.Enroller != nil {
		if err := s.cfg.Enroller.EnrollCurrent(ctx, req.Miner, verdict.Tier, now); err != nil {
			// Settlement already closed the epoch; the next submit lands in
			// the following one.
			if !errors.Is(err, iface.ErrEpochSettled) {
				return nil, internalErr(err)
			}
		}
	}

	return &SubmitResult{
		Miner:        req.Miner,
		MinerID:      req.MinerID,
		Tier:         string(verdict.Tier),
		Multiplier:   params.AntiquityMultiplier(verdict.Tier),
		EntropyScore: verdict.EntropyScore,
		ArchScore:    verdict.ArchScore,
		HardwareID:   hwID,
	}, nil
}

func (s *Service) verifySubmitSignature(req *SubmitRequest) *SubmitError {
	pub, err := hex.DecodeString(req.PublicKey)
	if err != nil || !rtc.ValidPublicKey(pub) {
		return submitErr(http.StatusBadRequest, CodeInvalidSignature, "public_key must be a hex Ed25519 key")
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return submitErr(http.StatusBadRequest, CodeInvalidSignature, "signature must be hex")
	}
	payload, err := rtc.CanonicalChallengePayload(map[string]interface{}{
		"commitment": req.Commitment,
		"miner":      req.Miner,
		"miner_id":   req.MinerID,
		"nonce":      req.Nonce,
	})
	if err != nil {
		return internalErr(err)
	}
	if !rtc.Verify(pub, payload, sig) {
		return submitErr(http.StatusBadRequest, CodeInvalidSignature, "signature does not verify")
	}
	return nil
}

func internalErr(err error) *SubmitError {
	log.WithError(err).Error("Attestation pipeline failure")
	return submitErr(http.StatusInternalServerError, CodeInternal, "internal error")
}
