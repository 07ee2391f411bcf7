package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edge-proxy/internal/config"
	"edge-proxy/internal/metrics"
	"edge-proxy/internal/router"
)

// StatusPath serves proxy status as JSON.
const StatusPath = "/__status"

// RegisterRoutes wires all route handlers onto the Echo instance.
// Everything that is not a reserved path falls through to the proxy.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.Any(router.HealthPath, health.Health)
	e.GET(StatusPath, health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/", proxy.Handle)
	e.Any("/*", proxy.Handle)
}
