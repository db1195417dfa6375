package token

import "testing"

func TestHashOpaqueTokenHex_Modes(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	sha := HashOpaqueTokenHex("secret")
	if sha != HashSHA256Hex("secret") {
		t.Fatalf("expected SHA-256 fallback without HMAC key")
	}
	if len(sha) != 64 {
		t.Fatalf("expected 64-char hex, got %d", len(sha))
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	mac := HashOpaqueTokenHex("secret")
	if mac == sha {
		t.Fatalf("HMAC mode must not equal plain SHA-256")
	}
	if mac != HashHMACSHA256Hex("secret", []byte("0123456789abcdef0123456789abcdef")) {
		t.Fatalf("HMAC digest mismatch")
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("HMACKeyFromEnv: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}
}

func TestConstantTimeEqualPadded(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "123456", "123456", true},
		{"mismatch", "123456", "123457", false},
		{"prefix_only", "123456", "123", false},
		{"different_lengths", "1", "123456", false},
		{"both_empty", "", "", false},
		{"one_empty", "123456", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConstantTimeEqualPadded(tc.a, tc.b); got != tc.want {
				t.Fatalf("ConstantTimeEqualPadded(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
