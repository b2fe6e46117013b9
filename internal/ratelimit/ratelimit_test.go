package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowEnforcesBurst(t *testing.T) {
	l := NewLimiter("login", 3)

	require.True(t, l.Allow("1.2.3.4"))
	require.True(t, l.Allow("1.2.3.4"))
	require.True(t, l.Allow("1.2.3.4"))
	require.False(t, l.Allow("1.2.3.4"))

	// A different client has its own bucket.
	require.True(t, l.Allow("5.6.7.8"))
}

func TestSweepEvictsStaleClients(t *testing.T) {
	l := NewLimiter("quest", 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("1.2.3.4"))
	require.Len(t, l.clients, 1)

	now = now.Add(15 * time.Minute)
	require.True(t, l.Allow("5.6.7.8"))
	require.NotContains(t, l.clients, "1.2.3.4")
}

func TestWrapRejectsWith429(t *testing.T) {
	l := NewLimiter("login", 1)
	handler := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/login", nil)
	req.RemoteAddr = "9.9.9.9:5511"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.JSONEq(t, `{"type":"rate_limited","detail":"too many requests"}`, rr.Body.String())
}

func TestClientAddrStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:44321"
	require.Equal(t, "10.1.2.3", ClientAddr(req))

	req.RemoteAddr = "noport"
	require.Equal(t, "noport", ClientAddr(req))
}
