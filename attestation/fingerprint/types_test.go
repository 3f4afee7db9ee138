package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func parseJSON(t *testing.T, s string) *Report {
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return Parse(raw)
}

func TestParse_ObjectForm(t *testing.T) {
	r := parseJSON(t, `{
		"checks": {
			"anti_emulation": {"passed": true, "data": {"vm_indicators": []}},
			"clock_drift": {"passed": true, "data": {"cv": 0.002, "samples": 50}},
			"simd": {"passed": true, "data": {"flags": ["altivec", "fpu"]}}
		}
	}`)
	require.NotNil(t, r.AntiEmulation)
	assert.Equal(t, true, r.AntiEmulation.Passed)
	require.NotNil(t, r.ClockDrift)
	assert.Equal(t, 0.002, r.ClockDrift.CV)
	assert.Equal(t, 50, r.ClockDrift.Samples)
	require.NotNil(t, r.SIMD)
	assert.DeepEqual(t, []string{"altivec", "fpu"}, r.SIMD.Flags)
}

func TestParse_LegacyBoolForm(t *testing.T) {
	r := parseJSON(t, `{"checks": {"clock_drift": true, "thermal": false}}`)
	require.NotNil(t, r.ClockDrift)
	assert.Equal(t, true, r.ClockDrift.Passed)
	assert.Equal(t, false, r.ClockDrift.HasData)
	require.NotNil(t, r.Thermal)
	assert.Equal(t, false, r.Thermal.Passed)
}

func TestParse_MissingAndUnknownChecks(t *testing.T) {
	r := parseJSON(t, `{"checks": {"brand_new_check": {"passed": true}, "rom": {"passed": true, "data": {"hash": "abc"}}}}`)
	// Unknown check names are ignored.
	require.NotNil(t, r.ROM)
	assert.Equal(t, "abc", r.ROM.Hash)
	// Everything not provided stays nil.
	if r.ClockDrift != nil || r.SIMD != nil || r.AntiEmulation != nil {
		t.Fatal("absent checks must parse as nil")
	}
}

func TestParse_MalformedShapesDegrade(t *testing.T) {
	// A check that is neither bool nor object is treated as not provided,
	// as is an object without a boolean "passed".
	r := parseJSON(t, `{"checks": {"clock_drift": 42, "thermal": {"data": {}}, "simd": {"passed": "yes"}}}`)
	if r.ClockDrift != nil || r.Thermal != nil || r.SIMD != nil {
		t.Fatal("malformed checks must parse as nil")
	}
}

func TestParse_NoChecksKey(t *testing.T) {
	r := parseJSON(t, `{"platform": "macos9"}`)
	if r.AntiEmulation != nil || r.ClockDrift != nil {
		t.Fatal("expected empty report")
	}
}
