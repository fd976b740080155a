// Package network resolves the client address of a request.
//
// The address keys sign-in rate limiting and is recorded on audit events.
// Forwarding headers are only honored when the service runs behind a proxy
// that sets them (SetTrustProxyHeaders); otherwise a caller could pick a new
// address per request and never be locked out.
package network

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

var untrusted atomic.Bool

// SetTrustProxyHeaders controls whether X-Forwarded-For and X-Real-IP are
// consulted. They are trusted by default.
func SetTrustProxyHeaders(trust bool) {
	untrusted.Store(!trust)
}

// GetClientIP returns the client IP for r.
//
// With proxy headers trusted, the first valid address in X-Forwarded-For
// wins, then X-Real-IP. Otherwise, or when neither holds a valid address,
// the host part of RemoteAddr is used.
func GetClientIP(r *http.Request) string {
	if !untrusted.Load() {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := parseIP(part); ip != "" {
					return ip
				}
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return remoteHost(r.RemoteAddr)
}

// parseIP returns s in canonical form, or "" if it is not an IP address.
func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
