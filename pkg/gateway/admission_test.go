package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.3"}, "10.0.0.2:5000", "198.51.100.3"},
		{"remote addr", nil, "192.0.2.10:41000", "192.0.2.10"},
		{"remote without port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestAdmissionLimitsPerAddress(t *testing.T) {
	a := newAdmission(0.001, 2, zerolog.Nop())
	handler := a.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, request("192.0.2.1:1"))
	assert.Equal(t, http.StatusNoContent, request("192.0.2.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, request("192.0.2.1:3"))
	assert.Equal(t, http.StatusNoContent, request("192.0.2.2:1"), "other addresses have their own budget")
}

func TestAdmissionDisabled(t *testing.T) {
	a := newAdmission(0, 0, zerolog.Nop())
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	for i := 0; i < 100; i++ {
		assert.True(t, a.allow(r))
	}
}

func TestAdmissionSweep(t *testing.T) {
	a := newAdmission(1, 1, zerolog.Nop())
	a.allow(httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Len(t, a.clients, 1)

	a.sweep(time.Hour)
	assert.Len(t, a.clients, 1)

	a.clients["192.0.2.1"].lastSeen = time.Now().Add(-2 * time.Hour)
	a.sweep(time.Hour)
	assert.Empty(t, a.clients)
}
