// Package rtc implements the chain's crypto primitives: Ed25519 signature
// verification over canonical messages, RTC address derivation and the
// digests used by gossip and sync-status.
package rtc

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
)

// AddressLength is the total length of an RTC address: the "RTC" prefix plus
// the first 40 hex chars of SHA-256 over the public key bytes.
const AddressLength = 43

const addressPrefix = "RTC"

// DeriveAddress computes the wallet address for an Ed25519 public key.
func DeriveAddress(pubkey []byte) string {
	sum := sha256.Sum256(pubkey)
	return addressPrefix + hex.EncodeToString(sum[:])[:40]
}

// ValidAddress reports whether s is a well-formed RTC address. It checks
// shape only; addresses are not checksummed.
func ValidAddress(s string) bool {
	if len(s) != AddressLength || s[:3] != addressPrefix {
		return false
	}
	for _, c := range s[3:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FeePoolAddress is the well-known sink for transfer and withdrawal fees.
// It is derived from a fixed label rather than a key, so no one can spend it.
var FeePoolAddress = DeriveAddress([]byte("rustchain/fee-pool/v1"))

// ValidPublicKey reports whether b has the exact Ed25519 public key size.
func ValidPublicKey(b []byte) bool {
	return len(b) == ed25519.PublicKeySize
}
