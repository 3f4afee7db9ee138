package rtc

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// PayloadHash is the gossip dedup key for an envelope payload:
// hex(SHA-256(payload)).
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// BatchDigest commits to an ordered batch of payload hashes with
// BLAKE2b-256 over their concatenation.
func BatchDigest(hashes []string) string {
	h, _ := blake2b.New256(nil)
	for _, ph := range hashes {
		h.Write([]byte(ph))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TableDigest hashes a canonically sorted sequence of row encodings with
// BLAKE2b-256. Used by the sync-status merkle probe.
func TableDigest(rows [][]byte) string {
	h, _ := blake2b.New256(nil)
	for _, row := range rows {
		rowSum := blake2b.Sum256(row)
		h.Write(rowSum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
