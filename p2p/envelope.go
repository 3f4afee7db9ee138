package p2p

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/rustchain-network/rustchain/crypto/rtc"
)

// Envelope kinds.
const (
	KindInv     = "inv"
	KindGetData = "getdata"
	KindData    = "data"
)

// Envelope is the signed wrapper around every gossip payload.
type Envelope struct {
	Kind        string          `json:"kind"`
	AgentID     string          `json:"agent_id"`
	Nonce       string          `json:"nonce"`
	Sig         string          `json:"sig"`
	Pubkey      string          `json:"pubkey"`
	PayloadHash string          `json:"payload_hash"`
	TTL         int64           `json:"ttl"`
	Ts          int64           `json:"ts"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// signingBytes is the canonical byte string the envelope signature covers.
// The payload itself is covered indirectly through payload_hash.
func (e *Envelope) signingBytes() ([]byte, error) {
	return rtc.CanonicalChallengePayload(map[string]interface{}{
		"agent_id":     e.AgentID,
		"kind":         e.Kind,
		"nonce":        e.Nonce,
		"payload_hash": e.PayloadHash,
		"ts":           e.Ts,
	})
}

// newEnvelope builds and signs an envelope for the given payload.
func newEnvelope(kind, agentID string, priv ed25519.PrivateKey, pub ed25519.PublicKey, payload []byte, ttl time.Duration) (*Envelope, error) {
	nonce, err := rtc.RandomNonce(16)
	if err != nil {
		return nil, err
	}
	e := &Envelope{
		Kind:        kind,
		AgentID:     agentID,
		Nonce:       nonce,
		Pubkey:      hex.EncodeToString(pub),
		PayloadHash: rtc.PayloadHash(payload),
		TTL:         int64(ttl.Seconds()),
		Ts:          time.Now().Unix(),
		Payload:     payload,
	}
	msg, err := e.signingBytes()
	if err != nil {
		return nil, err
	}
	e.Sig = hex.EncodeToString(rtc.Sign(priv, msg))
	return e, nil
}

// Verification failures callers branch on.
var (
	errEnvelopeExpired = errors.New("envelope expired")
	errEnvelopeBadSig  = errors.New("envelope signature does not verify")
	errEnvelopeBadHash = errors.New("payload hash mismatch")
)

// checkEnvelope verifies freshness, payload integrity and the signature
// against the provided trusted key.
func checkEnvelope(e *Envelope, trustedKey []byte, now time.Time, maxAge time.Duration) error {
	age := now.Unix() - e.Ts
	if age > int64(maxAge.Seconds()) || age < -int64(maxAge.Seconds()) {
		return errEnvelopeExpired
	}
	if len(e.Payload) > 0 && rtc.PayloadHash(e.Payload) != e.PayloadHash {
		return errEnvelopeBadHash
	}
	sig, err := hex.DecodeString(e.Sig)
	if err != nil {
		return errEnvelopeBadSig
	}
	msg, err := e.signingBytes()
	if err != nil {
		return err
	}
	if !rtc.Verify(trustedKey, msg, sig) {
		return errEnvelopeBadSig
	}
	return nil
}
