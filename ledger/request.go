package ledger

import (
	"fmt"
	"math"
	"net/http"

	"github.com/rustchain-network/rustchain/crypto/rtc"
)

// RequestError carries the HTTP status and stable error code for a rejected
// wallet operation.
type RequestError struct {
	Status int
	Code   string
	Detail string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func badRequest(code, detail string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Code: code, Detail: detail}
}

// Error codes returned by the wallet surface.
const (
	CodeInvalidJSON         = "INVALID_JSON_OBJECT"
	CodeAmountNotFinite     = "AMOUNT_NOT_FINITE"
	CodeAmountTooSmall      = "AMOUNT_TOO_SMALL"
	CodeFromToMustDiffer    = "FROM_TO_MUST_DIFFER"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeNonceStale          = "NONCE_STALE"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

// TransferRequest is the typed form of a signed transfer or withdrawal body.
type TransferRequest struct {
	From       string
	To         string
	AmountURTC uint64
	Nonce      uint64
	Memo       string
	Signature  string // hex
	PublicKey  string // hex
}

// ParseTransfer shape-checks a decoded JSON object. Address shape, amount
// finiteness and quantization, nonce positivity and from/to distinctness are
// all enforced here so handlers stay thin.
func ParseTransfer(raw map[string]interface{}) (*TransferRequest, *RequestError) {
	req := &TransferRequest{}

	var ok bool
	if req.From, ok = raw["from_address"].(string); !ok || !rtc.ValidAddress(req.From) {
		return nil, badRequest(CodeInvalidJSON, "from_address must be a valid RTC address")
	}
	if req.To, ok = raw["to_address"].(string); !ok || !rtc.ValidAddress(req.To) {
		return nil, badRequest(CodeInvalidJSON, "to_address must be a valid RTC address")
	}
	if req.From == req.To {
		return nil, badRequest(CodeFromToMustDiffer, "from_to_must_differ")
	}

	amount, ok := raw["amount_rtc"].(float64)
	if !ok {
		return nil, badRequest(CodeAmountNotFinite, "amount_rtc must be a number")
	}
	urtc, rerr := QuantizeRTC(amount)
	if rerr != nil {
		return nil, rerr
	}
	req.AmountURTC = urtc

	nonce, ok := raw["nonce"].(float64)
	if !ok || nonce < 1 || nonce != math.Trunc(nonce) || nonce > math.MaxInt64 {
		return nil, badRequest(CodeInvalidJSON, "nonce must be a positive integer")
	}
	req.Nonce = uint64(nonce)

	if req.Signature, ok = raw["signature"].(string); !ok || req.Signature == "" {
		return nil, badRequest(CodeInvalidJSON, "signature must be a hex string")
	}
	if req.PublicKey, ok = raw["public_key"].(string); !ok || req.PublicKey == "" {
		return nil, badRequest(CodeInvalidJSON, "public_key must be a hex string")
	}
	req.Memo, _ = raw["memo"].(string)
	return req, nil
}
