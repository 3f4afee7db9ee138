package ledger

import (
	"math"

	"github.com/rustchain-network/rustchain/config/params"
)

// QuantizeRTC converts a floating-point RTC amount into integer micro-RTC.
// The float is rounded to the nearest uRTC; amounts that quantize below one
// uRTC are reported as too small.
func QuantizeRTC(amountRTC float64) (uint64, *RequestError) {
	if math.IsNaN(amountRTC) || math.IsInf(amountRTC, 0) {
		return 0, badRequest(CodeAmountNotFinite, "amount_not_finite")
	}
	if amountRTC <= 0 {
		return 0, badRequest(CodeAmountTooSmall, "amount_must_be_positive")
	}
	urtc := math.Round(amountRTC * params.MicroRTCPerRTC)
	if urtc < 1 {
		return 0, badRequest(CodeAmountTooSmall, "amount_too_small_after_quantization")
	}
	if urtc > math.MaxInt64 {
		return 0, badRequest(CodeAmountNotFinite, "amount_out_of_range")
	}
	return uint64(urtc), nil
}

// FormatRTC renders micro-RTC as a decimal RTC string for responses.
func FormatRTC(amountURTC uint64) float64 {
	return float64(amountURTC) / params.MicroRTCPerRTC
}
