package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"edge-proxy/internal/model"
	"edge-proxy/internal/router"
	"edge-proxy/internal/service"
)

// proxyErrorPrefix starts every body the proxy writes for a failed origin fetch.
const proxyErrorPrefix = "Proxy error: "

// ProxyHandler dispatches inbound requests to the image or generic proxy path.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle classifies the request, fetches the response from the origin (or the
// image cache) and streams it back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	route := router.Classify(req.URL.Path, req.Header)
	c.Set(router.ContextKey, route)

	if route == router.HealthCheck {
		return c.Blob(http.StatusOK, healthContentType, []byte("OK"))
	}

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		URL:           effectiveURL(c),
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	var (
		resp *model.ProxyResponse
		err  error
	)
	if route == router.ImageProxy {
		resp, err = h.service.FetchImage(pr)
	} else {
		resp, err = h.service.Forward(pr)
	}
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.Set(router.PassthroughKey, true)

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire, so a failed copy leaves the client
	// with a truncated body. Log it and move on.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
			"route", route.String(),
		)
	}

	return nil
}

// effectiveURL rebuilds the client-facing URL of the request.
func effectiveURL(c echo.Context) *url.URL {
	req := c.Request()
	return &url.URL{
		Scheme:   c.Scheme(),
		Host:     req.Host,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	msg := "origin request failed"

	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "origin request timed out"
	case errors.Is(err, context.Canceled):
		msg = "client disconnected"
	case errors.As(err, &dnsErr):
		msg = "origin host unreachable"
	case errors.As(err, &urlErr) && urlErr.Timeout():
		msg = "origin request timed out"
	case errors.As(err, &urlErr):
		msg = "origin connection failed"
	}

	return c.Blob(http.StatusBadGateway, echo.MIMETextPlainCharsetUTF8, []byte(proxyErrorPrefix+msg))
}
