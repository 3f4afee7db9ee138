package params

import "testing"

// SetupTestConfigCleanup preserves the active config and restores it when the
// test completes, so tests can override parameters freely.
func SetupTestConfigCleanup(t testing.TB) {
	prev := chainConfig
	t.Cleanup(func() {
		chainConfig = prev
	})
}
