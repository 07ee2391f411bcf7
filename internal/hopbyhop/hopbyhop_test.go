package hopbyhop

import (
	"net/http"
	"reflect"
	"testing"
)

func TestStrip(t *testing.T) {
	h := http.Header{
		"Content-Type":        {"image/png"},
		"Connection":          {"keep-alive"},
		"Keep-Alive":          {"timeout=5"},
		"Proxy-Authenticate":  {"Basic"},
		"Proxy-Authorization": {"Basic abc"},
		"Te":                  {"trailers"},
		"Trailer":             {"Expires"},
		"Trailers":            {"Expires"},
		"Transfer-Encoding":   {"chunked"},
		"Upgrade":             {"websocket"},
		"Cache-Control":       {"max-age=60"},
	}

	Strip(h)

	for _, name := range Headers {
		if _, ok := h[name]; ok {
			t.Errorf("header %q should be stripped", name)
		}
	}
	if h.Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", h.Get("Content-Type"))
	}
	if h.Get("Cache-Control") != "max-age=60" {
		t.Errorf("Cache-Control = %q, want max-age=60", h.Get("Cache-Control"))
	}
}

func TestStrip_CaseInsensitive(t *testing.T) {
	h := make(http.Header)
	h.Set("connection", "close")
	h.Set("TRANSFER-ENCODING", "chunked")
	h.Set("upgrade", "h2c")

	Strip(h)

	if len(h) != 0 {
		t.Errorf("expected all headers stripped, got %v", h)
	}
}

func TestStrip_Idempotent(t *testing.T) {
	h := http.Header{
		"Connection":   {"close"},
		"Content-Type": {"text/html"},
		"Etag":         {`"abc"`},
	}

	Strip(h)
	once := h.Clone()
	Strip(h)

	if !reflect.DeepEqual(once, h) {
		t.Errorf("second Strip changed headers: once=%v twice=%v", once, h)
	}
}

func TestSanitized_DoesNotMutateInput(t *testing.T) {
	h := http.Header{
		"Connection":   {"close"},
		"Content-Type": {"text/html"},
	}

	out := Sanitized(h)

	if h.Get("Connection") != "close" {
		t.Error("Sanitized mutated its input")
	}
	if out.Get("Connection") != "" {
		t.Error("Sanitized result still carries Connection")
	}
	if out.Get("Content-Type") != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", out.Get("Content-Type"))
	}
}

func TestSanitized_Nil(t *testing.T) {
	if out := Sanitized(nil); out == nil {
		t.Error("Sanitized(nil) returned nil header")
	}
}
