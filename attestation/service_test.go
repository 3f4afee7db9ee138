package attestation

import (
	"context"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/kevinms/leakybucket-go"

	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
	dbtest "github.com/rustchain-network/rustchain/db/testing"
	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

type recordingEnroller struct {
	calls []string
	tiers []params.AntiquityTier
	err   error
}

func (r *recordingEnroller) EnrollCurrent(_ context.Context, minerPK string, tier params.AntiquityTier, _ time.Time) error {
	r.calls = append(r.calls, minerPK)
	r.tiers = append(r.tiers, tier)
	return r.err
}

func setupService(t *testing.T) (*Service, iface.Database, *recordingEnroller) {
	params.SetupTestConfigCleanup(t)
	db := dbtest.SetupDB(t)
	enr := &recordingEnroller{}
	s, err := New(context.Background(), &Config{DB: db, Enroller: enr})
	require.NoError(t, err)
	// Generous buckets so pipeline tests are not throttled; the rate limit
	// path has its own test.
	s.limiter = &submitLimiter{
		perMiner: leakybucket.NewCollector(1000, 1000, true),
		perIP:    leakybucket.NewCollector(1000, 1000, true),
	}
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})
	return s, db, enr
}

func healthyPayload(miner, minerID, nonce string) map[string]interface{} {
	return map[string]interface{}{
		"miner":    miner,
		"miner_id": minerID,
		"nonce":    nonce,
		"report": map[string]interface{}{
			"commitment": rtc.ChallengeCommitment(nonce, miner, minerID),
		},
		"device": map[string]interface{}{
			"family":    "macintosh",
			"arch":      "g4",
			"model":     "PowerMac3,6",
			"cpu":       "PowerPC 7450",
			"cores":     float64(1),
			"memory_gb": float64(1),
			"serial":    "XB02140ABC",
		},
		"signals": map[string]interface{}{
			"macs": []interface{}{"00:0a:95:9d:68:16"},
		},
		"fingerprint": map[string]interface{}{
			"checks": map[string]interface{}{
				"anti_emulation": map[string]interface{}{
					"passed": true,
					"data":   map[string]interface{}{"vm_indicators": []interface{}{}},
				},
				"clock_drift": map[string]interface{}{
					"passed": true,
					"data":   map[string]interface{}{"cv": 0.004, "samples": float64(50)},
				},
				"cache_timing": map[string]interface{}{
					"passed": true,
					"data":   map[string]interface{}{"l1_ns": 3.0, "l2_ns": 9.0},
				},
				"simd": map[string]interface{}{
					"passed": true,
					"data":   map[string]interface{}{"flags": []interface{}{"altivec"}},
				},
				"thermal": map[string]interface{}{
					"passed": true,
					"data":   map[string]interface{}{"variance": 0.2, "samples": float64(5)},
				},
			},
		},
	}
}

func mustParse(t *testing.T, raw map[string]interface{}) *SubmitRequest {
	req, serr := ParseSubmit(raw)
	if serr != nil {
		t.Fatalf("unexpected shape error: %v", serr)
	}
	return req
}

func issueAndSubmit(t *testing.T, s *Service, miner, minerID string) (*SubmitResult, *SubmitError) {
	ch, err := s.IssueChallenge(context.Background(), minerID)
	require.NoError(t, err)
	req := mustParse(t, healthyPayload(miner, minerID, ch.Nonce))
	return s.ProcessSubmit(context.Background(), req, "198.51.100.7")
}

func TestProcessSubmit_AcceptsHealthyG4(t *testing.T) {
	s, db, enr := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-a"))

	res, serr := issueAndSubmit(t, s, miner, "agent-1")
	if serr != nil {
		t.Fatalf("expected acceptance, got %v", serr)
	}
	assert.Equal(t, string(params.TierClassic), res.Tier)
	assert.Equal(t, 1.5, res.Multiplier)
	assert.Equal(t, 32, len(res.HardwareID))

	// Attestation persisted and visible in the recent projection.
	miners, err := s.RecentMiners(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, len(miners))
	assert.Equal(t, miner, miners[0].Miner)
	assert.Equal(t, 1.5, miners[0].AntiquityMultiplier)

	// Enrolled for rewards under the wallet key.
	require.Equal(t, 1, len(enr.calls))
	assert.Equal(t, miner, enr.calls[0])
	assert.Equal(t, params.TierClassic, enr.tiers[0])

	// Hardware bound to this miner id.
	bound, err := db.BoundMiner(context.Background(), res.HardwareID)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", bound)
}

func TestProcessSubmit_UnknownNonce(t *testing.T) {
	s, _, _ := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-b"))
	req := mustParse(t, healthyPayload(miner, "agent-1", "deadbeef"))
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
	assert.Equal(t, CodeChallengeInvalid, serr.Code)
}

func TestProcessSubmit_NonceReplay(t *testing.T) {
	s, _, _ := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-c"))

	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	req := mustParse(t, healthyPayload(miner, "agent-1", ch.Nonce))
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	if serr != nil {
		t.Fatalf("first submit must pass, got %v", serr)
	}
	_, serr = s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusConflict, serr.Status)
	assert.Equal(t, CodeNonceReplay, serr.Code)
}

func TestProcessSubmit_ChallengeBoundToOtherMiner(t *testing.T) {
	s, _, _ := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-d"))

	ch, err := s.IssueChallenge(context.Background(), "agent-issued")
	require.NoError(t, err)
	req := mustParse(t, healthyPayload(miner, "agent-other", ch.Nonce))
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, CodeChallengeMismatch, serr.Code)
}

func TestProcessSubmit_CommitmentMismatch(t *testing.T) {
	s, _, _ := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-e"))

	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	raw := healthyPayload(miner, "agent-1", ch.Nonce)
	raw["report"] = map[string]interface{}{"commitment": "0000"}
	req := mustParse(t, raw)
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, CodeChallengeMismatch, serr.Code)
}

func TestProcessSubmit_HardwareBoundElsewhere(t *testing.T) {
	s, _, _ := setupService(t)
	minerA := rtc.DeriveAddress([]byte("wallet-f"))
	minerB := rtc.DeriveAddress([]byte("wallet-g"))

	_, serr := issueAndSubmit(t, s, minerA, "agent-a")
	if serr != nil {
		t.Fatalf("first submit must pass, got %v", serr)
	}
	// Same device fields, different miner id.
	_, serr = issueAndSubmit(t, s, minerB, "agent-b")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusConflict, serr.Status)
	assert.Equal(t, CodeHardwareBound, serr.Code)
}

func TestProcessSubmit_VMDetected(t *testing.T) {
	s, _, enr := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-h"))

	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	raw := healthyPayload(miner, "agent-1", ch.Nonce)
	raw["fingerprint"].(map[string]interface{})["checks"].(map[string]interface{})["anti_emulation"] = map[string]interface{}{
		"passed": false,
		"data":   map[string]interface{}{"vm_indicators": []interface{}{"kvm", "qemu"}},
	}
	req := mustParse(t, raw)
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusForbidden, serr.Status)
	assert.Equal(t, CodeVMDetected, serr.Code)
	assert.ErrorContains(t, "vm_detected:kvm,qemu", serr)
	assert.Equal(t, 0, len(enr.calls))
}

func TestProcessSubmit_BlockedWallet(t *testing.T) {
	s, db, _ := setupService(t)
	miner := rtc.DeriveAddress([]byte("wallet-i"))
	require.NoError(t, db.BlockWallet(context.Background(), miner))

	_, serr := issueAndSubmit(t, s, miner, "agent-1")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusForbidden, serr.Status)
	assert.Equal(t, CodeUnauthorized, serr.Code)
}

func TestProcessSubmit_RateLimitPerMiner(t *testing.T) {
	s, _, _ := setupService(t)
	s.limiter = newSubmitLimiter() // production limits: 1 per miner per period
	miner := rtc.DeriveAddress([]byte("wallet-j"))

	_, serr := issueAndSubmit(t, s, miner, "agent-1")
	if serr != nil {
		t.Fatalf("first submit must pass, got %v", serr)
	}
	_, serr = issueAndSubmit(t, s, miner, "agent-1")
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusTooManyRequests, serr.Status)
	assert.Equal(t, CodeRateLimit, serr.Code)
}

func TestProcessSubmit_SignatureVerified(t *testing.T) {
	s, _, _ := setupService(t)
	pub, priv, err := rtc.GenerateKey()
	require.NoError(t, err)
	miner := rtc.DeriveAddress(pub)

	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	raw := healthyPayload(miner, "agent-1", ch.Nonce)
	payload, err := rtc.CanonicalChallengePayload(map[string]interface{}{
		"commitment": rtc.ChallengeCommitment(ch.Nonce, miner, "agent-1"),
		"miner":      miner,
		"miner_id":   "agent-1",
		"nonce":      ch.Nonce,
	})
	require.NoError(t, err)
	raw["signature"] = hex.EncodeToString(rtc.Sign(priv, payload))
	raw["public_key"] = hex.EncodeToString(pub)

	req := mustParse(t, raw)
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	if serr != nil {
		t.Fatalf("signed submit must pass, got %v", serr)
	}
}

func TestProcessSubmit_BadSignatureRejected(t *testing.T) {
	s, _, _ := setupService(t)
	pub, _, err := rtc.GenerateKey()
	require.NoError(t, err)
	miner := rtc.DeriveAddress(pub)

	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	raw := healthyPayload(miner, "agent-1", ch.Nonce)
	raw["signature"] = hex.EncodeToString(make([]byte, 64))
	raw["public_key"] = hex.EncodeToString(pub)

	req := mustParse(t, raw)
	_, serr := s.ProcessSubmit(context.Background(), req, "198.51.100.7")
	require.NotNil(t, serr)
	assert.Equal(t, CodeInvalidSignature, serr.Code)
}

func TestIssueChallenge_NonceIsSingleUse(t *testing.T) {
	s, db, _ := setupService(t)
	ch, err := s.IssueChallenge(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 64, len(ch.Nonce))
	assert.Equal(t, int64(params.RustchainConfig().ChallengeTTL.Seconds()), ch.TTLSeconds)

	minerID, err := db.ConsumeChallenge(context.Background(), ch.Nonce, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "agent-1", minerID)
	_, err = db.ConsumeChallenge(context.Background(), ch.Nonce, time.Now())
	assert.ErrorContains(t, "challenge nonce unknown or expired", err)
}
