package rtc

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// CanonicalTransferMessage builds the exact byte string a wallet signs for a
// transfer: "<from>:<to>:<amount_uRTC>:<nonce>:<memo>". Verification must use
// this encoding and no other.
func CanonicalTransferMessage(from, to string, amountURTC uint64, nonce uint64, memo string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%d:%s", from, to, amountURTC, nonce, memo))
}

// CanonicalChallengePayload renders an attestation challenge payload with
// sorted keys. encoding/json marshals map keys in sorted order, which is the
// canonical form peers agree on.
func CanonicalChallengePayload(payload map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not canonicalize challenge payload")
	}
	return b, nil
}

// ChallengeCommitment computes the commitment a miner embeds in its report:
// hex(SHA-256(nonce || wallet || miner_id)) over the UTF-8 concatenation.
func ChallengeCommitment(nonce, wallet, minerID string) string {
	sum := sha256.Sum256([]byte(nonce + wallet + minerID))
	return hex.EncodeToString(sum[:])
}

// Verify checks an Ed25519 signature over msg. Malformed keys or signatures
// verify as false rather than panicking.
func Verify(pubkey, msg, sig []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), msg, sig)
}

// Sign signs msg with an Ed25519 private key. Used by the node's own gossip
// envelopes; wallet keys never enter the node.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// GenerateKey creates a fresh Ed25519 keypair for the node identity.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not generate node key")
	}
	return pub, priv, nil
}

// RandomNonce returns n cryptographically random bytes hex encoded.
func RandomNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "could not read randomness")
	}
	return hex.EncodeToString(b), nil
}
