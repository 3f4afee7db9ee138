package features

import "testing"

func TestInit_RefusesMockSignaturesInProduction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when arming mock signatures in production")
		}
	}()
	Init(&Flags{RuntimeEnv: "production", MockSignatures: true})
}

func TestInit_AllowsMockSignaturesInTestEnv(t *testing.T) {
	prev := featureConfig
	defer func() { featureConfig = prev }()
	Init(&Flags{RuntimeEnv: "test", MockSignatures: true})
	if !Get().MockSignatures {
		t.Fatal("expected mock signatures to be armed")
	}
}

func TestInit_DefaultsToProduction(t *testing.T) {
	prev := featureConfig
	defer func() { featureConfig = prev }()
	Init(&Flags{})
	if Get().RuntimeEnv != "production" {
		t.Fatalf("runtime env = %q, want production", Get().RuntimeEnv)
	}
}
