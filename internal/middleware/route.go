package middleware

import (
	"github.com/labstack/echo/v4"

	"edge-proxy/internal/router"
)

// RouteLocal labels requests the proxy answered itself without a route
// class, such as the status and metrics endpoints or router misses.
const RouteLocal = "local"

// routeLabel returns the route class the handler recorded on c.
func routeLabel(c echo.Context) string {
	if r, ok := c.Get(router.ContextKey).(router.Route); ok {
		return r.String()
	}
	return RouteLocal
}
