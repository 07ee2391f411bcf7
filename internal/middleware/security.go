package middleware

import (
	"github.com/labstack/echo/v4"

	"edge-proxy/internal/hopbyhop"
	"edge-proxy/internal/router"
)

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from the inbound request and marks locally generated responses nosniff.
// Responses relayed from the origin or the image cache keep their headers.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hopbyhop.Strip(c.Request().Header)

			res := c.Response()
			res.Before(func() {
				if passthrough, _ := c.Get(router.PassthroughKey).(bool); passthrough {
					return
				}
				if res.Header().Get(echo.HeaderXContentTypeOptions) == "" {
					res.Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
				}
			})

			return next(c)
		}
	}
}
