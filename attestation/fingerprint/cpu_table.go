package fingerprint

import "strings"

// cpuGeneration maps substrings of CPU brand strings to their introduction
// year. The table is the device-age oracle's ground truth; entries are
// matched case-insensitively, first match wins.
var cpuGenerations = []struct {
	pattern string
	year    int
}{
	{"68030", 1987},
	{"68040", 1990},
	{"601", 1993},
	{"603", 1994},
	{"604", 1994},
	{"750", 1997},   // G3
	{"7400", 1999},  // G4
	{"7450", 2001},  // G4e
	{"970", 2003},   // G5
	{"pentium iii", 1999},
	{"pentium 4", 2000},
	{"pentium m", 2003},
	{"core 2", 2006},
	{"core(tm) i", 2008},
	{"ryzen", 2017},
	{"apple m1", 2020},
	{"apple m2", 2022},
	{"cortex-a7", 2011},
	{"cortex-a53", 2012},
	{"cortex-a72", 2015},
}

// archYears maps claimed architectures to their canonical introduction year.
var archYears = map[string]int{
	"m68k":   1984,
	"g3":     1997,
	"g4":     1999,
	"g5":     2003,
	"ppc":    1993,
	"arm":    2011,
	"arm64":  2012,
	"x86":    1999,
	"x86_64": 2004,
	"amd64":  2004,
}

// brandYear parses a CPU brand string against the generation table. Returns
// (0, false) when the brand is unrecognised.
func brandYear(brand string) (int, bool) {
	b := strings.ToLower(brand)
	for _, g := range cpuGenerations {
		if strings.Contains(b, g.pattern) {
			return g.year, true
		}
	}
	return 0, false
}

// archYear returns the canonical year of a claimed arch.
func archYear(arch string) (int, bool) {
	y, ok := archYears[strings.ToLower(arch)]
	return y, ok
}

// isVintageArch reports whether the claimed arch is one of the retro PowerPC
// generations with stricter timing floors.
func isVintageArch(arch string) bool {
	switch strings.ToLower(arch) {
	case "g3", "g4", "g5":
		return true
	}
	return false
}

// expectedSIMD returns the SIMD flag the claimed arch must expose, or "" when
// the arch predates SIMD.
func expectedSIMD(arch string) string {
	switch strings.ToLower(arch) {
	case "g4", "g5":
		return "altivec"
	case "arm", "arm64":
		return "neon"
	case "x86", "x86_64", "amd64":
		return "sse"
	}
	return ""
}

// archHasL2 reports whether the claimed arch ships with a real L2 cache.
// m68k-era parts did not.
func archHasL2(arch string) bool {
	return strings.ToLower(arch) != "m68k"
}

// knownEmulatorROMs are boot ROM hashes shipped inside popular emulators.
var knownEmulatorROMs = map[string]string{
	"9a27a9b4e047b0e6a1a187f891eb7b8b64f0c425a7e35b33c07ae2d071c4f1be": "qemu-mac99",
	"5d270812e0b3c081a8bfce9b16de0ba152b6cbf64e3243e5f2e8fcd2fbc8f659": "sheepshaver",
	"0c1a5b867cfdd8b2b4e2f56de4f23e43c357a0bd672f2c0adba47629f4e160b2": "pearpc",
}
