package ledger

import (
	"math"
	"testing"

	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func TestQuantizeRTC(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		want       uint64
		wantCode   string
		wantDetail string
	}{
		{name: "one urtc exactly", amount: 0.000001, want: 1},
		{name: "below one urtc", amount: 0.0000001, wantCode: CodeAmountTooSmall, wantDetail: "amount_too_small_after_quantization"},
		{name: "nan", amount: math.NaN(), wantCode: CodeAmountNotFinite, wantDetail: "amount_not_finite"},
		{name: "positive inf", amount: math.Inf(1), wantCode: CodeAmountNotFinite, wantDetail: "amount_not_finite"},
		{name: "negative inf", amount: math.Inf(-1), wantCode: CodeAmountNotFinite, wantDetail: "amount_not_finite"},
		{name: "zero", amount: 0, wantCode: CodeAmountTooSmall},
		{name: "negative", amount: -1.5, wantCode: CodeAmountTooSmall},
		{name: "one and a half", amount: 1.5, want: 1_500_000},
		{name: "binary-awkward decimal", amount: 0.29, want: 290_000},
		{name: "ten", amount: 10, want: 10_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rerr := QuantizeRTC(tt.amount)
			if tt.wantCode != "" {
				require.NotNil(t, rerr)
				assert.Equal(t, tt.wantCode, rerr.Code)
				if tt.wantDetail != "" {
					assert.Equal(t, tt.wantDetail, rerr.Detail)
				}
				return
			}
			if rerr != nil {
				t.Fatalf("unexpected error: %v", rerr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTransfer_Preflight(t *testing.T) {
	from := "RTC" + "0123456789abcdef0123456789abcdef01234567"
	to := "RTC" + "fedcba9876543210fedcba9876543210fedcba98"
	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"from_address": from,
			"to_address":   to,
			"amount_rtc":   1.5,
			"nonce":        5.0,
			"signature":    "aa",
			"public_key":   "bb",
			"memo":         "rent",
		}
	}

	req, rerr := ParseTransfer(valid())
	if rerr != nil {
		t.Fatalf("valid body rejected: %v", rerr)
	}
	assert.Equal(t, uint64(1_500_000), req.AmountURTC)
	assert.Equal(t, uint64(5), req.Nonce)
	assert.Equal(t, "rent", req.Memo)

	tests := []struct {
		name     string
		mutate   func(m map[string]interface{})
		wantCode string
	}{
		{"missing from", func(m map[string]interface{}) { delete(m, "from_address") }, CodeInvalidJSON},
		{"short address", func(m map[string]interface{}) { m["to_address"] = "RTCabc" }, CodeInvalidJSON},
		{"uppercase hex address", func(m map[string]interface{}) { m["to_address"] = "RTC" + "0123456789ABCDEF0123456789ABCDEF01234567" }, CodeInvalidJSON},
		{"same from and to", func(m map[string]interface{}) { m["to_address"] = from }, CodeFromToMustDiffer},
		{"amount as string", func(m map[string]interface{}) { m["amount_rtc"] = "1.5" }, CodeAmountNotFinite},
		{"zero nonce", func(m map[string]interface{}) { m["nonce"] = 0.0 }, CodeInvalidJSON},
		{"fractional nonce", func(m map[string]interface{}) { m["nonce"] = 1.5 }, CodeInvalidJSON},
		{"negative nonce", func(m map[string]interface{}) { m["nonce"] = -3.0 }, CodeInvalidJSON},
		{"missing signature", func(m map[string]interface{}) { delete(m, "signature") }, CodeInvalidJSON},
		{"missing public key", func(m map[string]interface{}) { m["public_key"] = "" }, CodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := valid()
			tt.mutate(raw)
			_, rerr := ParseTransfer(raw)
			require.NotNil(t, rerr)
			assert.Equal(t, tt.wantCode, rerr.Code)
		})
	}
}
