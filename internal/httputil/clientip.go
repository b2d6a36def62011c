package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the address used for per-client rate limiting and
// access logs. Proxy headers take precedence over the socket peer, since the
// server is expected to run behind a reverse proxy.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For lists the original client first.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
