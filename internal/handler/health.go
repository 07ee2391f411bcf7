package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-proxy/internal/config"
	"edge-proxy/internal/router"
)

// healthContentType is sent with the health sentinel body.
const healthContentType = "text/plain; charset=utf-8"

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the health sentinel and the status endpoint.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Health answers every method with a plain-text OK and never contacts the origin.
func (h *HealthHandler) Health(c echo.Context) error {
	c.Set(router.ContextKey, router.HealthCheck)
	return c.Blob(http.StatusOK, healthContentType, []byte("OK"))
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	backend := h.cfg.Cache.Backend
	if backend == "" {
		backend = config.CacheBackendNone
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":        "ok",
		"version":       string(h.version),
		"origin_url":    h.cfg.Origin.BaseURL,
		"cache_backend": backend,
	})
}
