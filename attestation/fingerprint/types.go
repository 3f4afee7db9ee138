// Package fingerprint parses and validates the hardware fingerprints miners
// submit with their attestations. Payloads arrive in two historical shapes: a
// bare boolean per check (legacy agents) or an object {passed, data}. Parsing
// is permissive; validation is not.
package fingerprint

// Report is the typed form of a fingerprint payload. A nil check means the
// agent did not provide it, which is tolerated (legacy-permissive); a present
// but failing check is fatal.
type Report struct {
	AntiEmulation *AntiEmulationCheck
	ClockDrift    *ClockDriftCheck
	CacheTiming   *CacheTimingCheck
	SIMD          *SIMDCheck
	Thermal       *ThermalCheck
	ROM           *ROMCheck
}

// AntiEmulationCheck carries VM-detection evidence.
type AntiEmulationCheck struct {
	Passed     bool
	HasData    bool
	Indicators []string
}

// ClockDriftCheck carries timing-jitter statistics. CV is the coefficient of
// variation over repeated timer samples; real silicon is never perfectly
// uniform.
type ClockDriftCheck struct {
	Passed  bool
	HasData bool
	CV      float64
	Samples int
	Reason  string
}

// CacheTimingCheck carries measured per-level access latencies in ns.
type CacheTimingCheck struct {
	Passed    bool
	HasData   bool
	L1Latency float64
	L2Latency float64
	L3Latency float64
}

// SIMDCheck carries the SIMD capability flags the agent observed.
type SIMDCheck struct {
	Passed  bool
	HasData bool
	Flags   []string
}

// ThermalCheck carries sensor variance across repeated reports.
type ThermalCheck struct {
	Passed   bool
	HasData  bool
	Variance float64
	Samples  int
}

// ROMCheck carries the boot ROM hash on retro platforms.
type ROMCheck struct {
	Passed  bool
	HasData bool
	Hash    string
}

// Device is the claimed hardware identity accompanying a fingerprint.
type Device struct {
	Family   string
	Arch     string
	Model    string
	CPU      string
	Cores    int
	MemoryGB float64
	Serial   string
}

// Parse converts a raw fingerprint object into a typed Report. Unknown check
// names are ignored; malformed per-check shapes degrade to "not provided"
// rather than erroring, since the validator treats absent checks as legacy.
func Parse(raw map[string]interface{}) *Report {
	r := &Report{}
	checks, ok := raw["checks"].(map[string]interface{})
	if !ok {
		return r
	}
	for name, val := range checks {
		passed, data, provided := splitCheck(val)
		if !provided {
			continue
		}
		switch name {
		case "anti_emulation":
			c := &AntiEmulationCheck{Passed: passed, HasData: len(data) > 0}
			c.Indicators = stringSlice(data["vm_indicators"])
			r.AntiEmulation = c
		case "clock_drift":
			r.ClockDrift = &ClockDriftCheck{
				Passed:  passed,
				HasData: len(data) > 0,
				CV:      floatVal(data["cv"]),
				Samples: int(floatVal(data["samples"])),
				Reason:  stringVal(data["reason"]),
			}
		case "cache_timing":
			r.CacheTiming = &CacheTimingCheck{
				Passed:    passed,
				HasData:   len(data) > 0,
				L1Latency: floatVal(data["l1_ns"]),
				L2Latency: floatVal(data["l2_ns"]),
				L3Latency: floatVal(data["l3_ns"]),
			}
		case "simd":
			r.SIMD = &SIMDCheck{
				Passed:  passed,
				HasData: len(data) > 0,
				Flags:   stringSlice(data["flags"]),
			}
		case "thermal":
			r.Thermal = &ThermalCheck{
				Passed:   passed,
				HasData:  len(data) > 0,
				Variance: floatVal(data["variance"]),
				Samples:  int(floatVal(data["samples"])),
			}
		case "rom":
			r.ROM = &ROMCheck{
				Passed:  passed,
				HasData: len(data) > 0,
				Hash:    stringVal(data["hash"]),
			}
		}
	}
	return r
}

// splitCheck accepts the legacy bool form and the {passed, data} object form.
func splitCheck(val interface{}) (passed bool, data map[string]interface{}, provided bool) {
	switch v := val.(type) {
	case bool:
		return v, nil, true
	case map[string]interface{}:
		p, ok := v["passed"].(bool)
		if !ok {
			return false, nil, false
		}
		data, _ = v["data"].(map[string]interface{})
		return p, data, true
	default:
		return false, nil, false
	}
}

func floatVal(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func stringVal(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
