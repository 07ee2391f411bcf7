package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"

	"edge-proxy/internal/middleware"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	var calls atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer origin.Close()

	cfg := testConfig(origin.URL)
	proxy, health, svc, m := newTestStack(t, cfg)

	e := echo.New()
	RegisterRoutes(e, proxy, health, cfg, m)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCalls  int32
	}{
		{"GET /__health", http.MethodGet, "/__health", http.StatusOK, 0},
		{"DELETE /__health", http.MethodDelete, "/__health", http.StatusOK, 0},
		{"GET /__status", http.MethodGet, "/__status", http.StatusOK, 0},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK, 0},
		{"GET /", http.MethodGet, "/", http.StatusOK, 1},
		{"GET /any/path", http.MethodGet, "/any/path?x=1", http.StatusOK, 1},
		{"POST /any/path", http.MethodPost, "/any/path", http.StatusOK, 1},
		{"GET image", http.MethodGet, "/a/b.svg", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls.Load()

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			waitStores(t, svc)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := calls.Load() - before; got != tt.wantCalls {
				t.Errorf("origin calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	var calls atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("from origin"))
	}))
	defer origin.Close()

	cfg := testConfig(origin.URL)
	cfg.Metrics.Enabled = false
	proxy, health, _, m := newTestStack(t, cfg)

	e := echo.New()
	RegisterRoutes(e, proxy, health, cfg, m)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if calls.Load() != 1 {
		t.Errorf("origin calls = %d, want 1 (path proxied when metrics disabled)", calls.Load())
	}
	if !strings.Contains(rec.Body.String(), "from origin") {
		t.Errorf("body = %q, want origin body", rec.Body.String())
	}
}

func TestRegisterRoutes_CachedImageHeadersVerbatim(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		_, _ = w.Write([]byte("png"))
	}))
	defer origin.Close()

	cfg := testConfig(origin.URL)
	proxy, health, svc, m := newTestStack(t, cfg)

	e := echo.New()
	e.Use(middleware.SecurityHeaders())
	RegisterRoutes(e, proxy, health, cfg, m)

	var first http.Header
	for i := range 2 {
		req := httptest.NewRequest(http.MethodGet, "/img/a.png", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		waitStores(t, svc)

		if rec.Header().Get("X-Content-Type-Options") != "" {
			t.Errorf("request %d: nosniff added to a relayed image", i)
		}
		if i == 0 {
			first = rec.Header().Clone()
			continue
		}
		for _, h := range []string{"Content-Type", "Cache-Control"} {
			if rec.Header().Get(h) != first.Get(h) {
				t.Errorf("cached %s = %q, want %q", h, rec.Header().Get(h), first.Get(h))
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/__status", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("status endpoint should carry nosniff")
	}
}
