package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP_TrustProxy(t *testing.T) {
	h := &Handler{cfg: Config{TrustProxy: true}}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := h.clientIP(r); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q, want forwarded address", got)
	}
}

func TestClientIP_UntrustedProxyIgnoresHeader(t *testing.T) {
	h := &Handler{cfg: Config{TrustProxy: false}}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := h.clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q, want peer address", got)
	}
}

func TestClientIP_GarbageForwardedFallsBack(t *testing.T) {
	h := &Handler{cfg: Config{TrustProxy: true}}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("X-Forwarded-For", "not-an-ip")

	if got := h.clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q, want peer address", got)
	}
}

func TestSessionCookie_DevAttributes(t *testing.T) {
	h := &Handler{cfg: Config{
		Production:        false,
		SessionCookieName: "waybill_session",
		CookiePath:        "/",
	}}

	rec := httptest.NewRecorder()
	h.setSessionCookie(rec, "tok", time.Hour)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if !c.HttpOnly {
		t.Fatal("cookie must be HttpOnly")
	}
	if c.Secure {
		t.Fatal("dev cookie should not be Secure")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("dev SameSite = %v, want Lax", c.SameSite)
	}
	if c.MaxAge != 3600 {
		t.Fatalf("MaxAge = %d, want idle timeout in seconds", c.MaxAge)
	}
}

func TestSessionCookie_ProdAttributes(t *testing.T) {
	h := &Handler{cfg: Config{
		Production:        true,
		SessionCookieName: "waybill_session",
		CookiePath:        "/",
	}}

	rec := httptest.NewRecorder()
	h.setSessionCookie(rec, "tok", time.Hour)

	c := rec.Result().Cookies()[0]
	if !c.Secure {
		t.Fatal("prod cookie must be Secure")
	}
	if c.SameSite != http.SameSiteNoneMode {
		t.Fatalf("prod SameSite = %v, want None", c.SameSite)
	}
}

func TestClearSessionCookie(t *testing.T) {
	h := &Handler{cfg: Config{
		SessionCookieName: "waybill_session",
		CookiePath:        "/",
	}}

	rec := httptest.NewRecorder()
	h.clearSessionCookie(rec)

	c := rec.Result().Cookies()[0]
	if c.Value != "" || c.MaxAge != -1 {
		t.Fatalf("clear cookie = value %q maxage %d", c.Value, c.MaxAge)
	}
}
