package fingerprint

import (
	"strings"
	"testing"

	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/testing/assert"
	"github.com/rustchain-network/rustchain/testing/require"
)

func g4Device() *Device {
	return &Device{Family: "powermac", Arch: "g4", Model: "PowerMac3,6", CPU: "PowerPC 7450"}
}

// healthyG4Report is a fingerprint a real PowerMac G4 would produce.
func healthyG4Report() *Report {
	return &Report{
		AntiEmulation: &AntiEmulationCheck{Passed: true, HasData: true},
		ClockDrift:    &ClockDriftCheck{Passed: true, HasData: true, CV: 2e-3, Samples: 50},
		CacheTiming:   &CacheTimingCheck{Passed: true, HasData: true, L1Latency: 3, L2Latency: 12, L3Latency: 40},
		SIMD:          &SIMDCheck{Passed: true, HasData: true, Flags: []string{"altivec"}},
		Thermal:       &ThermalCheck{Passed: true, HasData: true, Variance: 0.3, Samples: 10},
	}
}

func TestValidate_HealthyG4(t *testing.T) {
	res := Validate(healthyG4Report(), g4Device())
	require.Equal(t, true, res.Passed, "reason: %s", res.Reason)
	assert.Equal(t, params.TierClassic, res.Tier)
	if res.EntropyScore <= 0 || res.EntropyScore > 1 {
		t.Errorf("entropy score out of range: %f", res.EntropyScore)
	}
}

func TestValidate_VMDetected(t *testing.T) {
	r := healthyG4Report()
	r.AntiEmulation = &AntiEmulationCheck{
		Passed: false, HasData: true, Indicators: []string{"kvm", "qemu"},
	}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "vm_detected:kvm,qemu", res.Reason)
	assert.Equal(t, params.TierEmulated, res.Tier)
}

func TestValidate_AntiEmulationNoEvidence(t *testing.T) {
	r := healthyG4Report()
	r.AntiEmulation = &AntiEmulationCheck{Passed: true, HasData: false}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "anti_emulation_no_evidence", res.Reason)
}

func TestValidate_ClockDriftBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		cv     float64
		arch   string
		passed bool
		reason string
	}{
		{"zero cv on vintage arch", 0, "g4", false, "vintage_timing_too_stable"},
		{"arch floor on g4", 1e-3, "g4", true, ""},
		{"just below arch floor", 9e-4, "g4", false, "vintage_timing_too_stable"},
		{"emulator-uniform timing", 5e-5, "x86_64", false, "timing_too_uniform"},
		{"zero cv on modern arch", 0, "x86_64", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := healthyG4Report()
			r.ClockDrift.CV = tt.cv
			dev := g4Device()
			dev.Arch = tt.arch
			if tt.arch != "g4" {
				dev.CPU = "Intel(R) Core(TM) i5"
				r.SIMD.Flags = []string{"sse", "avx"}
			}
			res := Validate(r, dev)
			require.Equal(t, tt.passed, res.Passed, "reason: %s", res.Reason)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, res.Reason)
			}
		})
	}
}

func TestValidate_ClockDriftFailedReason(t *testing.T) {
	r := healthyG4Report()
	r.ClockDrift = &ClockDriftCheck{Passed: false, HasData: true, Reason: "ntp_unreachable"}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "clock_drift_failed:ntp_unreachable", res.Reason)
}

func TestValidate_FlatCacheHierarchy(t *testing.T) {
	r := healthyG4Report()
	r.CacheTiming = &CacheTimingCheck{Passed: true, HasData: true, L1Latency: 3, L2Latency: 3.1}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "flat_cache_hierarchy", res.Reason)
}

func TestValidate_FlatL3Hierarchy(t *testing.T) {
	r := healthyG4Report()
	r.CacheTiming = &CacheTimingCheck{Passed: true, HasData: true, L1Latency: 3, L2Latency: 12, L3Latency: 12.2}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "flat_cache_hierarchy", res.Reason)
}

func TestValidate_CacheWithoutL3Tolerated(t *testing.T) {
	// Plenty of real parts have no L3 at all; only a reported-but-flat L3
	// counts against the hierarchy.
	r := healthyG4Report()
	r.CacheTiming = &CacheTimingCheck{Passed: true, HasData: true, L1Latency: 3, L2Latency: 12}
	res := Validate(r, g4Device())
	require.Equal(t, true, res.Passed, "reason: %s", res.Reason)
}

func TestValidate_FlatCacheAllowedWithoutL2(t *testing.T) {
	r := healthyG4Report()
	r.CacheTiming = &CacheTimingCheck{Passed: true, HasData: true, L1Latency: 3, L2Latency: 3.1}
	r.SIMD = nil
	dev := &Device{Arch: "m68k", CPU: "68040"}
	res := Validate(r, dev)
	require.Equal(t, true, res.Passed, "reason: %s", res.Reason)
	assert.Equal(t, params.TierAncient, res.Tier)
}

func TestValidate_MissingExpectedSIMD(t *testing.T) {
	r := healthyG4Report()
	r.SIMD = &SIMDCheck{Passed: true, HasData: true, Flags: []string{"sse"}}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "missing_expected_simd", res.Reason)
}

func TestValidate_FrozenThermalProfile(t *testing.T) {
	r := healthyG4Report()
	r.Thermal = &ThermalCheck{Passed: true, HasData: true, Variance: 0, Samples: 10}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	assert.Equal(t, "frozen_profile", res.Reason)
}

func TestValidate_EmulatorROM(t *testing.T) {
	r := healthyG4Report()
	r.ROM = &ROMCheck{Passed: true, HasData: true,
		Hash: "9a27a9b4e047b0e6a1a187f891eb7b8b64f0c425a7e35b33c07ae2d071c4f1be"}
	res := Validate(r, g4Device())
	require.Equal(t, false, res.Passed)
	if !strings.HasPrefix(res.Reason, "emulator_rom:") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestValidate_DeviceAgeOracleMismatch(t *testing.T) {
	r := healthyG4Report()
	dev := g4Device()
	dev.CPU = "AMD Ryzen 9 5950X" // 2017-era part claiming a 1999 arch
	res := Validate(r, dev)
	require.Equal(t, false, res.Passed)
	if !strings.HasPrefix(res.Reason, "device_age_oracle_mismatch") {
		t.Errorf("reason = %q", res.Reason)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Errorf("confidence out of range: %f", res.Confidence)
	}
}

func TestValidate_MissingChecksAreTolerated(t *testing.T) {
	// Legacy agents may send nothing at all.
	res := Validate(&Report{}, g4Device())
	require.Equal(t, true, res.Passed, "reason: %s", res.Reason)
	assert.Equal(t, params.TierClassic, res.Tier)
}

func TestTierForArch(t *testing.T) {
	tests := []struct {
		arch string
		want params.AntiquityTier
	}{
		{"m68k", params.TierAncient},
		{"g3", params.TierClassic},
		{"g4", params.TierClassic},
		{"g5", params.TierClassic},
		{"arm64", params.TierVintage},
		{"unknown-arch", params.TierModern},
	}
	for _, tt := range tests {
		if got := tierForArch(tt.arch); got != tt.want {
			t.Errorf("tierForArch(%q) = %s, want %s", tt.arch, got, tt.want)
		}
	}
}
