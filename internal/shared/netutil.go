package shared

import (
	"net/http"
	"strings"
)

// ClientIP returns the originating client address, preferring the first
// entry of X-Forwarded-For when a proxy added one.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndexByte(addr, ':'); idx >= 0 {
		return addr[:idx]
	}
	return addr
}

// UserAgent returns the request user agent header.
func UserAgent(r *http.Request) string {
	return r.Header.Get("User-Agent")
}
