package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/keyword-catcher/chat"
	"github.com/onnwee/keyword-catcher/config"
	"github.com/onnwee/keyword-catcher/control"
	"github.com/onnwee/keyword-catcher/telemetry"
)

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		name              string
		permissive        bool
		allowedOrigins    []string
		requestOrigin     string
		expectAllowOrigin string
		expectCredentials bool
	}{
		{
			name:              "permissive mode allows all origins",
			permissive:        true,
			requestOrigin:     "https://example.com",
			expectAllowOrigin: "*",
		},
		{
			name:              "restricted mode with matching origin",
			permissive:        false,
			allowedOrigins:    []string{"https://example.com", "http://localhost:3000"},
			requestOrigin:     "http://localhost:3000",
			expectAllowOrigin: "http://localhost:3000",
			expectCredentials: true,
		},
		{
			name:              "restricted mode with non-matching origin",
			permissive:        false,
			allowedOrigins:    []string{"https://example.com"},
			requestOrigin:     "https://evil.com",
			expectAllowOrigin: "",
		},
		{
			name:              "wildcard subdomain matching",
			permissive:        false,
			allowedOrigins:    []string{"*.example.com"},
			requestOrigin:     "https://panel.example.com",
			expectAllowOrigin: "https://panel.example.com",
			expectCredentials: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &corsConfig{
				permissive:     tt.permissive,
				allowedOrigins: tt.allowedOrigins,
			}

			handler := withCORSConfig(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}), cfg)

			req := httptest.NewRequest(http.MethodPost, "/keyword", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllowOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.expectAllowOrigin, got)
			}
			if tt.expectCredentials {
				if creds := rr.Header().Get("Access-Control-Allow-Credentials"); creds != "true" {
					t.Error("expected Allow-Credentials: true for restricted mode")
				}
			}
		})
	}
}

func TestCORSPreflightRequest(t *testing.T) {
	handler := withCORSConfig(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for OPTIONS request")
	}), &corsConfig{permissive: true})

	req := httptest.NewRequest(http.MethodOptions, "/start", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected Allow-Methods header on OPTIONS response")
	}
}

func TestCORSFromConfig(t *testing.T) {
	cfg := corsFromConfig(&config.Config{CORSAllowedOrigins: []string{" https://a.example ", ""}})
	if cfg.permissive {
		t.Error("expected restricted mode")
	}
	if len(cfg.allowedOrigins) != 1 || cfg.allowedOrigins[0] != "https://a.example" {
		t.Errorf("allowedOrigins = %v", cfg.allowedOrigins)
	}
	if !corsFromConfig(nil).permissive {
		t.Error("nil config should be permissive")
	}
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://example.com", "*.trusted.dev"}
	cases := map[string]bool{
		"https://example.com":      true,
		"https://app.trusted.dev":  true,
		"http://trusted.dev":       true,
		"https://evil.com":         false,
		"https://example.com.evil": false,
	}
	for origin, want := range cases {
		if got := isOriginAllowed(origin, allowed); got != want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestTelemetryCorrelation(t *testing.T) {
	var seen string
	handler := withTelemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = telemetry.GetCorrelation(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "corr-123" {
		t.Errorf("context correlation = %q, want corr-123", seen)
	}
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("response correlation = %q", got)
	}
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestStatusRecorderHijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("expected error when the underlying writer cannot hijack")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{control.ErrMissingField, http.StatusBadRequest, "Missing username or platform"},
		{control.ErrUnsupportedPlatform, http.StatusBadRequest, "Unsupported platform"},
		{&chat.StartError{Platform: "tiktok", Reason: "User is not live"}, http.StatusBadRequest, "User is not live"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.status {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.status)
		}
		if got := reasonFor(c.err); got != c.reason {
			t.Errorf("reasonFor(%v) = %q, want %q", c.err, got, c.reason)
		}
	}
}
