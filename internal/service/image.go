package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"edge-proxy/internal/cache"
	"edge-proxy/internal/hopbyhop"
	"edge-proxy/internal/metrics"
	"edge-proxy/internal/model"
)

// DefaultImageContentType is set on image responses the origin sent without a Content-Type.
const DefaultImageContentType = "image/*"

// storeTimeout bounds a single background cache write.
const storeTimeout = 10 * time.Second

// FetchImage serves an image request cache-aside: a stored response is
// returned as is, otherwise the image is fetched from the origin with GET and
// no body. A successful response is copied into the cache in the background
// once the caller has read its body to EOF. The caller must close the body.
func (s *ProxyService) FetchImage(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	ctx := pr.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	key := cache.Key(pr.URL.String(), pr.Header.Get("Accept"))

	if s.cacheEnabled {
		stored, err := s.store.Lookup(ctx, key)
		switch {
		case err == nil:
			s.countLookup(metrics.CacheHit)
			s.logger.Debug("image cache hit", "path", pr.URL.Path, "key", key)
			return &model.ProxyResponse{
				StatusCode: stored.StatusCode,
				Status:     stored.Status,
				Header:     stored.Header,
				Body:       io.NopCloser(bytes.NewReader(stored.Body)),
			}, nil
		case errors.Is(err, cache.ErrNotFound):
			s.countLookup(metrics.CacheMiss)
		default:
			// A broken cache must not take image traffic down with it.
			s.countLookup(metrics.CacheError)
			s.logger.Warn("image cache lookup failed", "key", key, "err", err)
		}
	}

	up := s.BuildUpstream(pr)
	up.Method = http.MethodGet
	up.Body = nil
	up.ContentLength = 0

	s.logger.Debug("fetching image", "path", pr.URL.Path)

	resp, err := s.do(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("fetch image from origin: %w", err)
	}

	header := hopbyhop.Sanitized(resp.Header)
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", DefaultImageContentType)
	}

	out := &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     header,
		Body:       resp.Body,
	}

	if s.cacheEnabled && cacheable(resp.StatusCode, pr.Header) {
		storedHeader := header.Clone()
		out.Body = newCaptureBody(resp.Body, s.maxEntryBytes, func(body []byte, err error) {
			if err != nil {
				s.countStore(metrics.StoreSkipped)
				s.logger.Debug("image not cached", "key", key, "reason", err)
				return
			}
			s.storeAsync(key, &model.StoredResponse{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Header:     storedHeader,
				Body:       body,
			})
		})
	}

	return out, nil
}

// storeAsync writes entry to the cache without blocking the response path.
// Failures are logged and otherwise ignored.
func (s *ProxyService) storeAsync(key string, entry *model.StoredResponse) {
	s.tasks.Add(1)
	if s.metrics != nil {
		s.metrics.PendingStores.Inc()
	}

	go func() {
		defer s.tasks.Done()
		if s.metrics != nil {
			defer s.metrics.PendingStores.Dec()
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := s.store.Store(ctx, key, entry, s.cacheTTL); err != nil {
			s.countStore(metrics.StoreFailed)
			s.logger.Warn("image cache store failed", "key", key, "err", err)
			return
		}
		s.countStore(metrics.StoreStored)
	}()
}

// cacheable reports whether an origin response may be stored under the
// request's key. Partial content would be replayed to later full requests.
func cacheable(status int, reqHeader http.Header) bool {
	if status < 200 || status >= 300 || status == http.StatusPartialContent {
		return false
	}
	return reqHeader.Get("Range") == ""
}

func (s *ProxyService) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *ProxyService) countStore(result string) {
	if s.metrics != nil {
		s.metrics.CacheStores.WithLabelValues(result).Inc()
	}
}
