// Package hopbyhop removes connection-scoped headers that must not cross a proxy.
package hopbyhop

import "net/http"

// Headers lists the hop-by-hop header names, in canonical form. "Trailers" is
// kept alongside the RFC 7230 spelling "Trailer" because some origins send it.
var Headers = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// Strip deletes every hop-by-hop header from h in place. Lookups go through
// http.Header.Del, so non-canonical keys set via Header.Set are matched too.
// Callers that still need the original must pass h.Clone().
func Strip(h http.Header) {
	for _, name := range Headers {
		h.Del(name)
	}
}

// Sanitized returns a copy of h with hop-by-hop headers removed.
func Sanitized(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}
	Strip(out)
	return out
}
