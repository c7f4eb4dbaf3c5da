package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, h := range pre {
		r.Use(h)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := secRouter(SecurityOptions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("nosniff missing")
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("frame options missing")
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("referrer policy missing")
	}

	// Optional groups off by default.
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" {
		t.Fatalf("optional headers set without opt-in")
	}
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS set without opt-in")
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	r := secRouter(SecurityOptions{EnablePolicy: true, NoStore: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	h := w.Header()
	if !strings.Contains(h.Get("Permissions-Policy"), "geolocation=()") {
		t.Fatalf("permissions policy missing: %q", h.Get("Permissions-Policy"))
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("cross-domain policy missing")
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store trio missing")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	// Plain HTTP: no HSTS even when enabled.
	r := secRouter(SecurityOptions{EnableHSTS: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be set for plain HTTP")
	}

	// TLS request: HSTS with default max-age (180 days).
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "https://example.com/ok", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)
	got := w.Header().Get("Strict-Transport-Security")
	if !strings.Contains(got, "max-age=15552000") || !strings.Contains(got, "includeSubDomains") {
		t.Fatalf("HSTS header = %q", got)
	}

	// Forwarded proto counts as HTTPS; explicit max-age is honored.
	r2 := secRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r2.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=3600") {
		t.Fatalf("HSTS header = %q", got)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	setRID := func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Next()
	}

	// Fresh expose header.
	r := secRouter(SecurityOptions{}, setRID)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose headers = %q", got)
	}

	// Appends without clobbering existing values.
	setBoth := func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Header("Access-Control-Expose-Headers", "X-Other")
		c.Next()
	}
	r = secRouter(SecurityOptions{}, setBoth)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Other, X-Request-ID" {
		t.Fatalf("expose headers = %q", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain request reported as HTTPS")
	}
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req) {
		t.Fatalf("forwarded proto not recognized")
	}
	req2 := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req2.TLS = &tls.ConnectionState{}
	if !isHTTPS(req2) {
		t.Fatalf("TLS request not recognized")
	}
}
