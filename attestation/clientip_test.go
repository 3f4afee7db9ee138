package attestation

import (
	"net/http"
	"testing"

	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func httpReq(remote, xff string) *http.Request {
	r := &http.Request{RemoteAddr: remote, Header: http.Header{}}
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	return r
}

func TestClientIP_UntrustedPeerIgnoresXFF(t *testing.T) {
	r := httpReq("203.0.113.9:51000", "10.0.0.1, 192.0.2.4")
	assert.Equal(t, "203.0.113.9", ClientIP(r, nil))
}

func TestClientIP_TrustedProxyUsesRightmostEntry(t *testing.T) {
	nets, err := ParseTrustedProxies("127.0.0.0/8, 10.0.0.0/8")
	require.NoError(t, err)

	r := httpReq("127.0.0.1:9000", "198.51.100.1, 203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(r, nets))

	// Spoofed left-most entries never win.
	r = httpReq("10.1.2.3:9000", "1.2.3.4, 5.6.7.8, 198.51.100.77")
	assert.Equal(t, "198.51.100.77", ClientIP(r, nets))
}

func TestClientIP_TrustedProxyWithoutHeader(t *testing.T) {
	nets, err := ParseTrustedProxies("127.0.0.0/8")
	require.NoError(t, err)
	r := httpReq("127.0.0.1:9000", "")
	assert.Equal(t, "127.0.0.1", ClientIP(r, nets))
}

func TestClientIP_GarbageXFFFallsBack(t *testing.T) {
	nets, err := ParseTrustedProxies("127.0.0.0/8")
	require.NoError(t, err)
	r := httpReq("127.0.0.1:9000", "not-an-ip")
	assert.Equal(t, "127.0.0.1", ClientIP(r, nets))
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies("127.0.0.0/8, bogus")
	assert.ErrorContains(t, "invalid trusted proxy cidr", err)
}

func TestHardwareID_StableAndCaseInsensitive(t *testing.T) {
	a := HardwareID("PowerMac3,6", "g4", "macintosh", "XB123", "00:0a:95:9d:68:16")
	b := HardwareID("powermac3,6", "G4", "Macintosh", "xb123", "00:0A:95:9D:68:16")
	assert.Equal(t, a, b)
	assert.Equal(t, 32, len(a))

	c := HardwareID("PowerMac3,6", "g4", "macintosh", "XB124", "00:0a:95:9d:68:16")
	assert.NotEqual(t, a, c)
}

func TestParseSubmit_ShapeErrors(t *testing.T) {
	valid := healthyPayload("RTC"+"0123456789abcdef0123456789abcdef01234567", "agent-1", "aa")
	if _, serr := ParseSubmit(valid); serr != nil {
		t.Fatalf("valid payload rejected: %v", serr)
	}

	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{"missing miner", func(m map[string]interface{}) { delete(m, "miner") }},
		{"bad miner address", func(m map[string]interface{}) { m["miner"] = "RTCxyz" }},
		{"numeric miner_id", func(m map[string]interface{}) { m["miner_id"] = 42.0 }},
		{"empty nonce", func(m map[string]interface{}) { m["nonce"] = "" }},
		{"report as string", func(m map[string]interface{}) { m["report"] = "nope" }},
		{"device as array", func(m map[string]interface{}) { m["device"] = []interface{}{} }},
		{"signals as number", func(m map[string]interface{}) { m["signals"] = 1.0 }},
		{"macs as object", func(m map[string]interface{}) {
			m["signals"] = map[string]interface{}{"macs": map[string]interface{}{}}
		}},
		{"mac entry not string", func(m map[string]interface{}) {
			m["signals"] = map[string]interface{}{"macs": []interface{}{1.0}}
		}},
		{"fingerprint as string", func(m map[string]interface{}) { m["fingerprint"] = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := healthyPayload("RTC"+"0123456789abcdef0123456789abcdef01234567", "agent-1", "aa")
			tt.mutate(raw)
			_, serr := ParseSubmit(raw)
			require.NotNil(t, serr)
			assert.Equal(t, CodeInvalidJSON, serr.Code)
		})
	}
}
