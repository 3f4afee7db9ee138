// Package features wraps runtime toggles that change node behaviour, most
// importantly the environment gate controlling test-only shortcuts.
package features

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "features")

// EnvRuntimeEnv names the environment variable selecting the runtime
// environment. Recognised values: "production" (default), "test", "dev".
const EnvRuntimeEnv = "RC_RUNTIME_ENV"

// Flags holds the active feature toggles.
type Flags struct {
	// RuntimeEnv is the declared environment of this process.
	RuntimeEnv string
	// MockSignatures skips attestation signature verification. It may only
	// ever be armed when RuntimeEnv is "test"; Init panics otherwise.
	MockSignatures bool
}

var featureConfig = &Flags{RuntimeEnv: "production"}

// Get retrieves the active feature flags.
func Get() *Flags {
	return featureConfig
}

// Init installs the given flag set after validating environment invariants.
// A node configured with test-only shortcuts outside the test environment
// must refuse to boot; that refusal is a panic here so it cannot be swallowed.
func Init(f *Flags) {
	if f.RuntimeEnv == "" {
		f.RuntimeEnv = "production"
	}
	if f.MockSignatures && f.RuntimeEnv != "test" {
		panic("mock signatures enabled outside the test environment, refusing to boot")
	}
	if f.MockSignatures {
		log.Warn("Mock attestation signatures are enabled")
	}
	featureConfig = f
}

// InitFromEnv builds flags from the process environment.
func InitFromEnv(mockSignatures bool) {
	Init(&Flags{
		RuntimeEnv:     os.Getenv(EnvRuntimeEnv),
		MockSignatures: mockSignatures,
	})
}
