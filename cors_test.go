package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academy-ops/rank-tracking-backend/config"
	"github.com/academy-ops/rank-tracking-backend/middleware"
	"github.com/gorilla/mux"
)

func init() {
	// Initialize logger for tests
	middleware.InitLogger()
}

// testCORSConfig mirrors the development defaults the dashboard runs against
func testCORSConfig() *config.Config {
	return &config.Config{
		CORSConfig: config.CORSConfig{
			Environment: "development",
			DevelopmentOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			StagingOrigins: []string{
				"https://staging.ranktracker.example",
			},
			ProductionOrigins: []string{
				"https://ranktracker.example",
			},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Request-ID", "Cache-Control"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
	}
}

// corsTestRouter wires the API surface the dashboard actually calls
func corsTestRouter(cfg *config.Config) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/enqueue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"job_id":"test"}`))
	}).Methods("POST")
	router.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	return CORSMiddleware(router, cfg)
}

// TestCORSPreflightOnEnqueue exercises the preflight a browser sends before
// POSTing a tracking job from the dashboard
func TestCORSPreflightOnEnqueue(t *testing.T) {
	handler := corsTestRouter(testCORSConfig())

	req := httptest.NewRequest("OPTIONS", "/enqueue", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Request-ID")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected origin header http://localhost:3000, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Expected methods header 'GET, POST, OPTIONS', got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Request-ID, Cache-Control" {
		t.Errorf("Expected allowed headers to include X-Request-ID, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Errorf("Expected X-Request-ID to be exposed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials header 'true', got %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Expected max age 86400, got %q", got)
	}
}

// TestCORSOnStream covers the long-lived stream request, which the browser
// issues as a plain GET with an Origin header rather than a preflight
func TestCORSOnStream(t *testing.T) {
	handler := corsTestRouter(testCORSConfig())

	testCases := []struct {
		name        string
		origin      string
		shouldAllow bool
	}{
		{"Allowed dashboard origin", "http://localhost:3000", true},
		{"Allowed loopback origin", "http://127.0.0.1:3000", true},
		{"Disallowed origin", "https://evil.example", false},
		{"No origin header", "", false},
		{"Case sensitive check", "http://LOCALHOST:3000", false},
		{"Staging origin not valid in development", "https://staging.ranktracker.example", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/stream", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			originHeader := w.Header().Get("Access-Control-Allow-Origin")
			if tc.shouldAllow && originHeader != tc.origin {
				t.Errorf("Expected origin header %q, got %q", tc.origin, originHeader)
			}
			if !tc.shouldAllow && originHeader != "" {
				t.Errorf("Expected no origin header, got %q", originHeader)
			}
		})
	}
}

// TestEnvironmentBasedOrigins tests that origins are selected based on environment
func TestEnvironmentBasedOrigins(t *testing.T) {
	corsConfig := testCORSConfig().CORSConfig

	testCases := []struct {
		environment     string
		expectedOrigins []string
	}{
		{"development", []string{"http://localhost:3000", "http://127.0.0.1:3000"}},
		{"dev", []string{"http://localhost:3000", "http://127.0.0.1:3000"}},
		{"staging", []string{"https://staging.ranktracker.example"}},
		{"stage", []string{"https://staging.ranktracker.example"}},
		{"production", []string{"https://ranktracker.example"}},
		{"prod", []string{"https://ranktracker.example"}},
		{"unknown", []string{"http://localhost:3000", "http://127.0.0.1:3000"}}, // Falls back to development
	}

	for _, tc := range testCases {
		t.Run(tc.environment, func(t *testing.T) {
			corsConfig.Environment = tc.environment

			origins := getAllowedOrigins(corsConfig)
			if len(origins) != len(tc.expectedOrigins) {
				t.Fatalf("Expected %d origins, got %d", len(tc.expectedOrigins), len(origins))
			}
			for i, expected := range tc.expectedOrigins {
				if origins[i] != expected {
					t.Errorf("Expected origin %s at index %d, got %s", expected, i, origins[i])
				}
			}
		})
	}
}

// TestSubdomainValidation tests subdomain validation logic
func TestSubdomainValidation(t *testing.T) {
	corsConfig := config.CORSConfig{
		AllowSubdomains:    true,
		AllowedDomains:     []string{"ranktracker.example"},
		DevelopmentOrigins: []string{"*.ranktracker.example"},
	}

	testCases := []struct {
		name        string
		origin      string
		shouldAllow bool
	}{
		{"Exact domain match", "https://ranktracker.example", true},
		{"Dashboard subdomain", "https://dashboard.ranktracker.example", true},
		{"API subdomain", "https://api.ranktracker.example", true},
		{"Unrelated domain", "https://evil.example", false},
		{"Similar but different", "https://ranktracker.example.evil.example", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			allowed := isOriginAllowed(tc.origin, corsConfig)
			if allowed != tc.shouldAllow {
				t.Errorf("Expected %v for origin %s, got %v", tc.shouldAllow, tc.origin, allowed)
			}
		})
	}
}
