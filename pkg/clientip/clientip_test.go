package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prepdeck/membership/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(*http.Request)
		expected string
	}{
		{
			name: "cloudflare header wins",
			setup: func(r *http.Request) {
				r.Header.Set("CF-Connecting-IP", "203.0.113.7")
				r.Header.Set("X-Forwarded-For", "198.51.100.1")
			},
			expected: "203.0.113.7",
		},
		{
			name: "first valid forwarded IP",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.1, 10.0.0.1")
			},
			expected: "198.51.100.1",
		},
		{
			name: "real ip header",
			setup: func(r *http.Request) {
				r.Header.Set("X-Real-IP", "192.0.2.44")
			},
			expected: "192.0.2.44",
		},
		{
			name:     "remote addr fallback",
			setup:    func(r *http.Request) {},
			expected: "192.0.2.1",
		},
		{
			name: "ipv6 normalized",
			setup: func(r *http.Request) {
				r.Header.Set("X-Real-IP", "2001:DB8::1")
			},
			expected: "2001:db8::1",
		},
		{
			name: "invalid header falls through",
			setup: func(r *http.Request) {
				r.Header.Set("CF-Connecting-IP", "garbage")
			},
			expected: "192.0.2.1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "192.0.2.1:54321"
			tt.setup(r)

			assert.Equal(t, tt.expected, clientip.GetIP(r))
		})
	}
}
