package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HardwareID derives the stable identity of a physical machine: the first 32
// hex chars of SHA-256 over (model, arch, family, serial, first MAC), in that
// fixed order. Inputs are lowercased so agents reporting mixed case converge.
func HardwareID(model, arch, family, serial, firstMAC string) string {
	parts := []string{model, arch, family, serial, firstMAC}
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
