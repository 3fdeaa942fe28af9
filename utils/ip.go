package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client address from proxy headers,
// falling back to the socket peer address
func ClientIP(r *http.Request) string {
	headers := []string{"X-Forwarded-For", "X-Real-Ip", "Client-Ip"}

	for _, header := range headers {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the first hop is the client
		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)
		if net.ParseIP(value) != nil {
			return value
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
