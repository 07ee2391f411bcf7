package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"edge-proxy/internal/cache"
	"edge-proxy/internal/client"
	"edge-proxy/internal/config"
	"edge-proxy/internal/metrics"
	"edge-proxy/internal/model"
)

// recordingStore is an in-memory cache.Store that records every call.
type recordingStore struct {
	mu        sync.Mutex
	entries   map[string]*model.StoredResponse
	lookups   []string
	stores    []string
	lookupErr error
	storeErr  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{entries: make(map[string]*model.StoredResponse)}
}

func (r *recordingStore) Lookup(_ context.Context, key string) (*model.StoredResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, key)
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	e, ok := r.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return e, nil
}

func (r *recordingStore) Store(_ context.Context, key string, resp *model.StoredResponse, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, key)
	if r.storeErr != nil {
		return r.storeErr
	}
	r.entries[key] = resp
	return nil
}

func (r *recordingStore) Close() error { return nil }

func (r *recordingStore) storeCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stores...)
}

func testConfig(originURL string) *config.Config {
	return &config.Config{
		Origin: config.OriginConfig{
			BaseURL:         originURL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		Cache: config.CacheConfig{
			TTLSeconds:    3600,
			MaxEntryBytes: 1 << 20,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, store cache.Store) (*ProxyService, *metrics.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	oc := client.NewOriginClient(cfg, logger, m)
	svc, err := NewProxyService(oc, store, cfg, logger, m)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}
	return svc, m
}

// clientRequest builds a ProxyRequest as the handler would for a client-facing URL.
func clientRequest(t *testing.T, method, rawURL string, header http.Header, body io.ReadCloser) *model.ProxyRequest {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	if header == nil {
		header = http.Header{}
	}
	return &model.ProxyRequest{
		Ctx:    context.Background(),
		Method: method,
		URL:    u,
		Header: header,
		Body:   body,
	}
}

// drain reads and closes the response body, returning its contents.
func drain(t *testing.T, resp *model.ProxyResponse) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return string(b)
}

func waitBackground(t *testing.T, svc *ProxyService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
