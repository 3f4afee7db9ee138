package rtc

import (
	"crypto/ed25519"
	"strings"
	"testing"
)

func TestDeriveAddress(t *testing.T) {
	pub, _, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := DeriveAddress(pub)
	if len(addr) != AddressLength {
		t.Fatalf("address length = %d, want %d", len(addr), AddressLength)
	}
	if !strings.HasPrefix(addr, "RTC") {
		t.Fatalf("address %q missing RTC prefix", addr)
	}
	if !ValidAddress(addr) {
		t.Fatalf("derived address %q did not validate", addr)
	}
	// Deterministic.
	if addr != DeriveAddress(pub) {
		t.Fatal("address derivation is not deterministic")
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"RTC" + strings.Repeat("ab", 20), true},
		{"RTC" + strings.Repeat("AB", 20), false}, // uppercase hex rejected
		{"RTC" + strings.Repeat("ab", 19), false}, // short
		{"BTC" + strings.Repeat("ab", 20), false}, // wrong prefix
		{"", false},
		{"RTC" + strings.Repeat("zz", 20), false}, // non-hex
	}
	for _, tt := range tests {
		if got := ValidAddress(tt.addr); got != tt.want {
			t.Errorf("ValidAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestTransferSignRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	from := DeriveAddress(pub)
	to := "RTC" + strings.Repeat("bb", 20)
	msg := CanonicalTransferMessage(from, to, 1_500_000, 5, "")
	want := from + ":" + to + ":1500000:5:"
	if string(msg) != want {
		t.Fatalf("canonical message = %q, want %q", msg, want)
	}
	sig := Sign(priv, msg)
	if !Verify(pub, msg, sig) {
		t.Fatal("signature did not verify")
	}
	// A different amount must not verify.
	other := CanonicalTransferMessage(from, to, 1_500_001, 5, "")
	if Verify(pub, other, sig) {
		t.Fatal("signature verified over a different message")
	}
}

func TestVerify_MalformedInputs(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("hello")
	sig := Sign(priv, msg)
	if Verify(pub[:16], msg, sig) {
		t.Fatal("short pubkey verified")
	}
	if Verify(pub, msg, sig[:8]) {
		t.Fatal("short signature verified")
	}
	if Verify(make([]byte, ed25519.PublicKeySize), msg, sig) {
		t.Fatal("zero pubkey verified")
	}
}

func TestChallengeCommitment(t *testing.T) {
	a := ChallengeCommitment("n1", "RTCabc", "miner-1")
	b := ChallengeCommitment("n1", "RTCabc", "miner-1")
	if a != b {
		t.Fatal("commitment is not deterministic")
	}
	if a == ChallengeCommitment("n2", "RTCabc", "miner-1") {
		t.Fatal("commitment ignores nonce")
	}
	if len(a) != 64 {
		t.Fatalf("commitment length = %d, want 64", len(a))
	}
}

func TestCanonicalChallengePayload_SortsKeys(t *testing.T) {
	b, err := CanonicalChallengePayload(map[string]interface{}{
		"zeta":  1,
		"alpha": "x",
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"alpha":"x","zeta":1}` {
		t.Fatalf("canonical payload = %s", b)
	}
}

func TestTableDigest_Deterministic(t *testing.T) {
	rows := [][]byte{[]byte("a|1"), []byte("b|2")}
	if TableDigest(rows) != TableDigest(rows) {
		t.Fatal("table digest is not deterministic")
	}
	if TableDigest(rows) == TableDigest([][]byte{[]byte("b|2"), []byte("a|1")}) {
		t.Fatal("table digest ignores row order")
	}
}
