package fingerprint

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustchain-network/rustchain/config/params"
)

// Validation thresholds. Floors come from measurements of real hardware; an
// emulator's virtualized timers sit well below them.
const (
	// cvEmulatorCeiling: a coefficient of variation this uniform only occurs
	// under a virtualized clock.
	cvEmulatorCeiling = 1e-4
	// cvVintageFloor: G3/G4/G5 timer jitter never measures below this.
	cvVintageFloor = 1e-3
	// cacheRatioFloor: each reported cache level must be at least this much
	// slower than the level above it on parts that have a real hierarchy.
	cacheRatioFloor = 1.05
	// thermalVarianceFloor: sensors frozen below this across samples are a
	// replayed profile.
	thermalVarianceFloor = 1e-6
	// ageToleranceYears: allowed disagreement between the claimed arch year
	// and the CPU brand's generation year.
	ageToleranceYears = 6
)

// Result is the validator's verdict over one fingerprint.
type Result struct {
	Passed       bool
	Reason       string
	EntropyScore float64 // [0,1], higher = more organic jitter observed
	ArchScore    float64 // [0,1], consistency of the claimed arch
	Confidence   float64 // [0,1], set for device-age oracle verdicts
	Tier         params.AntiquityTier
}

func fail(reason string) *Result {
	return &Result{Passed: false, Reason: reason, Tier: params.TierEmulated}
}

// Validate applies the per-check rules in fixed order; the first fatal
// failure wins. A missing check is tolerated, a present-and-failing one is
// fatal.
func Validate(r *Report, dev *Device) *Result {
	// 1. Anti-emulation.
	if c := r.AntiEmulation; c != nil {
		if !c.Passed {
			return fail("vm_detected:" + strings.Join(c.Indicators, ","))
		}
		if !c.HasData {
			return fail("anti_emulation_no_evidence")
		}
	}

	// 2. Clock drift.
	if c := r.ClockDrift; c != nil {
		if !c.Passed {
			return fail("clock_drift_failed:" + c.Reason)
		}
		if c.CV > 0 && c.CV < cvEmulatorCeiling {
			return fail("timing_too_uniform")
		}
		if isVintageArch(dev.Arch) && c.CV < cvVintageFloor {
			return fail("vintage_timing_too_stable")
		}
	}

	// 3. Cache timing.
	if c := r.CacheTiming; c != nil {
		if !c.Passed {
			return fail("cache_timing_failed")
		}
		if c.HasData && c.L1Latency > 0 && archHasL2(dev.Arch) {
			if c.L2Latency/c.L1Latency < cacheRatioFloor {
				return fail("flat_cache_hierarchy")
			}
			if c.L3Latency > 0 && c.L3Latency/c.L2Latency < cacheRatioFloor {
				return fail("flat_cache_hierarchy")
			}
		}
	}

	// 4. SIMD identity.
	if c := r.SIMD; c != nil && c.HasData {
		if want := expectedSIMD(dev.Arch); want != "" && !hasFlag(c.Flags, want) {
			return fail("missing_expected_simd")
		}
	}

	// 5. Thermal drift.
	if c := r.Thermal; c != nil {
		if !c.Passed {
			return fail("thermal_check_failed")
		}
		if c.HasData && c.Samples > 1 && c.Variance < thermalVarianceFloor {
			return fail("frozen_profile")
		}
	}

	// 6. ROM fingerprint, retro platforms only.
	if c := r.ROM; c != nil && c.HasData && isVintageArch(dev.Arch) {
		if emu, known := knownEmulatorROMs[strings.ToLower(c.Hash)]; known {
			return fail("emulator_rom:" + emu)
		}
	}

	// 7. Device-age oracle.
	tier := tierForArch(dev.Arch)
	suspicion := 0.0
	if ay, ok := archYear(dev.Arch); ok {
		if by, ok := brandYear(dev.CPU); ok {
			gap := math.Abs(float64(by - ay))
			if gap > ageToleranceYears {
				confidence := math.Min(1.0, gap/20.0)
				res := fail(fmt.Sprintf("device_age_oracle_mismatch:arch=%d,brand=%d", ay, by))
				res.Confidence = confidence
				return res
			}
			suspicion = gap / float64(ageToleranceYears)
		}
	}

	entropy := entropyScore(r)
	archScore := archConsistency(r, dev, suspicion)
	// Weak but not disqualifying evidence demotes to the emulator tier
	// rather than rejecting outright.
	if entropy < 0.05 && archScore < 0.5 {
		tier = params.TierEmulated
	}
	return &Result{
		Passed:       true,
		EntropyScore: entropy,
		ArchScore:    archScore,
		Tier:         tier,
	}
}

// tierForArch buckets a claimed arch by its canonical year.
func tierForArch(arch string) params.AntiquityTier {
	y, ok := archYear(arch)
	if !ok {
		return params.TierModern
	}
	switch {
	case y <= 1995:
		return params.TierAncient
	case y <= 2005:
		return params.TierClassic
	case y <= 2015:
		return params.TierVintage
	default:
		return params.TierModern
	}
}

// entropyScore folds the observed jitter sources into [0,1].
func entropyScore(r *Report) float64 {
	score := 0.0
	n := 0
	if c := r.ClockDrift; c != nil && c.HasData {
		// Map cv in [0, 0.05] onto [0,1].
		score += clamp01(c.CV / 0.05)
		n++
	}
	if c := r.Thermal; c != nil && c.HasData {
		score += clamp01(c.Variance / 0.5)
		n++
	}
	if c := r.CacheTiming; c != nil && c.HasData && c.L1Latency > 0 {
		// A healthy hierarchy spreads latency across levels.
		score += clamp01((c.L2Latency/c.L1Latency - 1.0) / 4.0)
		n++
	}
	if n == 0 {
		// Legacy payload with no measurable evidence.
		return 0.1
	}
	return score / float64(n)
}

// archConsistency scores how well the provided checks agree with the claimed
// arch.
func archConsistency(r *Report, dev *Device, ageSuspicion float64) float64 {
	score := 1.0
	if c := r.SIMD; c != nil && c.HasData {
		if want := expectedSIMD(dev.Arch); want != "" && hasFlag(c.Flags, want) {
			score += 0.0 // expected flag present, no penalty
		}
	} else if expectedSIMD(dev.Arch) != "" {
		score -= 0.2 // claimed a SIMD-era arch but provided no flags
	}
	if _, ok := archYear(dev.Arch); !ok {
		score -= 0.3 // unknown arch claim
	}
	score -= 0.3 * ageSuspicion
	return clamp01(score)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
