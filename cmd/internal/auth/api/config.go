package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// Production gates secure-cookie attributes and hides devCode in MFA
	// responses.
	Production bool

	// CSRFEnabled applies single-use token checks to state-changing methods.
	CSRFEnabled bool

	// MFAEnabled makes login issue an mfa_pending session that must pass
	// /mfa/verify before it carries authority.
	MFAEnabled bool

	TrustProxy   bool
	MaxBodyBytes int64

	SessionCookieName string
	CookiePath        string
	CookieDomain      string
	CSRFHeaderName    string

	// ResetURLBase prefixes emailed reset links.
	ResetURLBase string
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Production:        envBool("WAYBILL_PRODUCTION", false),
		CSRFEnabled:       envBool("WAYBILL_CSRF_ENABLED", true),
		MFAEnabled:        envBool("WAYBILL_MFA_ENABLED", false),
		TrustProxy:        envBool("WAYBILL_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("WAYBILL_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		SessionCookieName: envString("WAYBILL_SESSION_COOKIE_NAME", "waybill_session"),
		CookiePath:        envString("WAYBILL_COOKIE_PATH", "/"),
		CookieDomain:      envString("WAYBILL_COOKIE_DOMAIN", ""),
		CSRFHeaderName:    envString("WAYBILL_CSRF_HEADER_NAME", "x-csrf-token"),
		ResetURLBase:      envString("WAYBILL_RESET_URL_BASE", "http://localhost:5173/reset-password"),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
