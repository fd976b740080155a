package network

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func request(remote string, headers ...string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remote
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return req
}

func TestGetClientIP(t *testing.T) {
	const proxy = "10.0.0.1:12345"

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"forwarded single", request(proxy, "X-Forwarded-For", "198.51.100.4"), "198.51.100.4"},
		{"forwarded chain keeps first hop", request(proxy, "X-Forwarded-For", "198.51.100.4, 10.0.0.2, 172.16.0.1"), "198.51.100.4"},
		{"forwarded skips junk", request(proxy, "X-Forwarded-For", "unknown, 203.0.113.9"), "203.0.113.9"},
		{"forwarded junk only", request(proxy, "X-Forwarded-For", "not-an-ip"), "10.0.0.1"},
		{"forwarded ipv6 canonical", request(proxy, "X-Forwarded-For", "2001:DB8::0:1"), "2001:db8::1"},
		{"real ip trimmed", request(proxy, "X-Real-IP", " 198.51.100.5 "), "198.51.100.5"},
		{"forwarded beats real ip", request(proxy, "X-Forwarded-For", "198.51.100.4", "X-Real-IP", "198.51.100.5"), "198.51.100.4"},
		{"remote with port", request("192.0.2.8:5555"), "192.0.2.8"},
		{"remote bare", request("192.0.2.8"), "192.0.2.8"},
		{"remote ipv6 with port", request("[::1]:12345"), "::1"},
		{"remote ipv6 bracketed", request("[::1]"), "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetClientIP(tt.req))
		})
	}
}

func TestGetClientIP_UntrustedHeaders(t *testing.T) {
	SetTrustProxyHeaders(false)
	t.Cleanup(func() { SetTrustProxyHeaders(true) })

	req := request("198.51.100.7:4000",
		"X-Forwarded-For", "203.0.113.9",
		"X-Real-IP", "203.0.113.10")
	assert.Equal(t, "198.51.100.7", GetClientIP(req), "spoofable headers must be ignored")
}
