package attestation

import (
	"fmt"
	"net/http"

	"github.com/rustchain-network/rustchain/attestation/fingerprint"
	"github.com/rustchain-network/rustchain/crypto/rtc"
)

// SubmitError carries the HTTP status and stable error code a failed
// submission maps to.
type SubmitError struct {
	Status int
	Code   string
	Detail string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func submitErr(status int, code, detail string) *SubmitError {
	return &SubmitError{Status: status, Code: code, Detail: detail}
}

// Error codes returned by the attestation pipeline.
const (
	CodeInvalidJSON         = "INVALID_JSON_OBJECT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimit           = "RATE_LIMIT"
	CodeChallengeInvalid    = "CHALLENGE_INVALID"
	CodeChallengeMismatch   = "CHALLENGE_MISMATCH"
	CodeNonceReplay         = "NONCE_REPLAY"
	CodeHardwareBound       = "HARDWARE_BOUND"
	CodeVMDetected          = "VM_DETECTED"
	CodeFingerprintRejected = "FINGERPRINT_REJECTED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeInternal            = "INTERNAL"
)

// SubmitRequest is the typed form of an attestation submission.
type SubmitRequest struct {
	Miner       string
	MinerID     string
	Nonce       string
	Commitment  string
	Device      *fingerprint.Device
	MACs        []string
	Hostname    string
	Fingerprint map[string]interface{}
	Signature   string // hex, optional
	PublicKey   string // hex, required when Signature is set
}

// ParseSubmit shape-checks a decoded JSON object into a SubmitRequest. Field
// presence and container types are strict; the fingerprint's inner checks stay
// raw for the permissive fingerprint parser.
func ParseSubmit(raw map[string]interface{}) (*SubmitRequest, *SubmitError) {
	req := &SubmitRequest{}

	var ok bool
	if req.Miner, ok = raw["miner"].(string); !ok || !rtc.ValidAddress(req.Miner) {
		return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "miner must be a valid RTC address")
	}
	if req.MinerID, ok = raw["miner_id"].(string); !ok || req.MinerID == "" {
		return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "miner_id must be a non-empty string")
	}
	if req.Nonce, ok = raw["nonce"].(string); !ok || req.Nonce == "" {
		return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "nonce must be a non-empty string")
	}

	if v, present := raw["report"]; present {
		report, ok := v.(map[string]interface{})
		if !ok {
			return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "report must be an object")
		}
		req.Commitment, _ = report["commitment"].(string)
	}

	req.Device = &fingerprint.Device{}
	if v, present := raw["device"]; present {
		dev, ok := v.(map[string]interface{})
		if !ok {
			return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "device must be an object")
		}
		req.Device = &fingerprint.Device{
			Family:   strField(dev, "family"),
			Arch:     strField(dev, "arch"),
			Model:    strField(dev, "model"),
			CPU:      strField(dev, "cpu"),
			Cores:    int(numField(dev, "cores")),
			MemoryGB: numField(dev, "memory_gb"),
			Serial:   strField(dev, "serial"),
		}
	}

	if v, present := raw["signals"]; present {
		signals, ok := v.(map[string]interface{})
		if !ok {
			return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "signals must be an object")
		}
		if m, present := signals["macs"]; present {
			items, ok := m.([]interface{})
			if !ok {
				return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "signals.macs must be an array of strings")
			}
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "signals.macs must be an array of strings")
				}
				req.MACs = append(req.MACs, s)
			}
		}
		req.Hostname = strField(signals, "hostname")
	}

	req.Fingerprint = map[string]interface{}{}
	if v, present := raw["fingerprint"]; present {
		fp, ok := v.(map[string]interface{})
		if !ok {
			return nil, submitErr(http.StatusBadRequest, CodeInvalidJSON, "fingerprint must be an object")
		}
		req.Fingerprint = fp
	}

	req.Signature, _ = raw["signature"].(string)
	req.PublicKey, _ = raw["public_key"].(string)
	return req, nil
}

func strField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func numField(m map[string]interface{}, key string) float64 {
	n, _ := m[key].(float64)
	return n
}

// firstMAC returns the first reported MAC, or empty when none were reported.
func (r *SubmitRequest) firstMAC() string {
	if len(r.MACs) == 0 {
		return ""
	}
	return r.MACs[0]
}
