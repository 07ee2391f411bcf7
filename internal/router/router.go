// Package router classifies inbound requests into the proxy path that serves them.
package router

import (
	"net/http"
	"path"
	"strings"
)

// HealthPath is answered locally without contacting the origin.
const HealthPath = "/__health"

// ContextKey is the echo context key under which handlers record the Route they served.
const ContextKey = "route"

// PassthroughKey is set on the echo context when the response being written
// was relayed from the origin or the image cache.
const PassthroughKey = "passthrough"

// Route is the handling path selected for a request.
type Route int

const (
	GenericProxy Route = iota
	ImageProxy
	HealthCheck
)

func (r Route) String() string {
	switch r {
	case HealthCheck:
		return "health"
	case ImageProxy:
		return "image"
	default:
		return "generic"
	}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".avif": true,
	".svg":  true,
}

// Classify picks the route for a request path and its headers. It has no side effects.
func Classify(urlPath string, header http.Header) Route {
	if urlPath == HealthPath {
		return HealthCheck
	}
	if IsImage(urlPath, header) {
		return ImageProxy
	}
	return GenericProxy
}

// IsImage reports whether the path carries a known image extension
// (case-insensitive) or the Accept header asks for an image/ type.
func IsImage(urlPath string, header http.Header) bool {
	if imageExtensions[strings.ToLower(path.Ext(urlPath))] {
		return true
	}
	return strings.Contains(header.Get("Accept"), "image/")
}
