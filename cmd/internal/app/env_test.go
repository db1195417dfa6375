package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("WAYBILL_TEST_STR", "  value  ")
	if got := EnvString("WAYBILL_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("WAYBILL_TEST_STR_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default = %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("WAYBILL_TEST_BOOL", "true")
	if !EnvBool("WAYBILL_TEST_BOOL", false) {
		t.Fatal("EnvBool should parse true")
	}
	t.Setenv("WAYBILL_TEST_BOOL", "garbage")
	if !EnvBool("WAYBILL_TEST_BOOL", true) {
		t.Fatal("EnvBool should fall back on parse failure")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("WAYBILL_TEST_INT", "42")
	if got := EnvInt("WAYBILL_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	t.Setenv("WAYBILL_TEST_INT", "-3")
	if got := EnvInt("WAYBILL_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt non-positive fallback = %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("WAYBILL_TEST_DUR", "90s")
	if got := EnvDuration("WAYBILL_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("EnvDuration = %v", got)
	}
	t.Setenv("WAYBILL_TEST_DUR", "-5s")
	if got := EnvDuration("WAYBILL_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration non-positive fallback = %v", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.ReadinessRequireDB {
		t.Fatal("readiness should require the database by default")
	}
	if !cfg.MetricsEnabled {
		t.Fatal("metrics should default to enabled")
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Setenv("WAYBILL_TOKEN_HMAC_KEY", "")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
		t.Fatalf("policy off: %v", err)
	}
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatal("policy on without key should fail")
	}

	t.Setenv("WAYBILL_TOKEN_HMAC_KEY", "short")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatal("policy on with short key should fail")
	}

	t.Setenv("WAYBILL_TOKEN_HMAC_KEY", "0123456789abcdef0123456789abcdef")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
		t.Fatalf("policy on with valid key: %v", err)
	}
}
