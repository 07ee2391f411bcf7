// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"edge-proxy/internal/cache"
	"edge-proxy/internal/client"
	"edge-proxy/internal/config"
	"edge-proxy/internal/hopbyhop"
	"edge-proxy/internal/metrics"
	"edge-proxy/internal/model"
)

// ProxyService forwards requests to the single configured origin and serves
// image requests through a cache-aside layer.
type ProxyService struct {
	client  *client.OriginClient
	store   cache.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	origin        *url.URL
	host          string
	cacheEnabled  bool
	cacheTTL      time.Duration
	maxEntryBytes int64

	// tasks tracks background cache writes so shutdown can wait for them.
	tasks sync.WaitGroup
}

// Upstream is the outbound request derived from a client request.
type Upstream struct {
	Method        string
	URL           string
	Host          string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(c *client.OriginClient, store cache.Store, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := cfg.Origin.OriginURL()
	if err != nil {
		return nil, err
	}

	host := cfg.Origin.HostHeader
	if host == "" {
		host = u.Host
	}
	if store == nil {
		store = cache.Nop{}
	}

	return &ProxyService{
		client:        c,
		store:         store,
		logger:        logger.With("component", "proxy_service"),
		metrics:       m,
		origin:        u,
		host:          host,
		cacheEnabled:  !cache.IsNop(store),
		cacheTTL:      cfg.Cache.TTL(),
		maxEntryBytes: cfg.Cache.MaxEntryBytes,
	}, nil
}

// BuildUpstream rewrites pr onto the origin. Path and query are kept exactly,
// the Host is replaced with the origin's, Content-Encoding is dropped and GET
// or HEAD requests never carry a body. Other bodies stream through unbuffered.
func (s *ProxyService) BuildUpstream(pr *model.ProxyRequest) *Upstream {
	u := *s.origin
	u.Path = pr.URL.Path
	u.RawPath = pr.URL.RawPath
	u.RawQuery = pr.URL.RawQuery
	u.Fragment = ""

	header := pr.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Del("Content-Encoding")
	header.Set("Host", s.host)

	up := &Upstream{
		Method: pr.Method,
		URL:    u.String(),
		Host:   s.host,
		Header: header,
	}
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead && pr.Body != nil && pr.Body != http.NoBody {
		up.Body = pr.Body
		up.ContentLength = pr.ContentLength
	}
	return up
}

// Forward sends pr to the origin once and returns the response with
// hop-by-hop headers removed. The caller is responsible for closing the body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	up := s.BuildUpstream(pr)

	s.logger.Debug("forwarding request",
		"method", up.Method,
		"path", pr.URL.Path,
	)

	resp, err := s.do(pr.Ctx, up)
	if err != nil {
		return nil, fmt.Errorf("forward to origin: %w", err)
	}

	resp.Header = hopbyhop.Sanitized(resp.Header)
	return resp, nil
}

// Wait blocks until all background cache writes have finished or ctx is done.
func (s *ProxyService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background cache writes: %w", ctx.Err())
	}
}

func (s *ProxyService) do(ctx context.Context, up *Upstream) (*model.ProxyResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.DoStream(ctx, up.Method, up.URL, up.Host, up.Header, up.Body, up.ContentLength)
}
