// Package testing allows for spinning up a real sqlite database for tests.
package testing

import (
	"testing"

	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/db/sqlite"
)

// SetupDB instantiates and returns a database backed by a temp directory,
// closed automatically when the test completes.
func SetupDB(t testing.TB) iface.Database {
	store, err := sqlite.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("could not open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("could not close test database: %v", err)
		}
	})
	return store
}
