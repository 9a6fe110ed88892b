package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/core"
)

func TestClientSuccessAddsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("api_key"))
		require.Equal(t, "ranked", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(Options{APIKey: "secret", HTTP: server.Client()})
	resp, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL + "/x?type=ranked", Label: "x"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestClientStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/busy":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := New(Options{HTTP: server.Client()})

	_, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL + "/missing"})
	require.True(t, core.IsNotFound(err))
	require.False(t, core.IsTransient(err))

	_, err = client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL + "/busy"})
	require.True(t, core.IsRateLimited(err))
	var statusErr *core.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 7*time.Second, statusErr.RetryAfter)

	_, err = client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL + "/boom"})
	require.Equal(t, http.StatusInternalServerError, core.StatusCodeOf(err))
	require.True(t, core.IsTransient(err))
}

func TestClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Options{})
	_, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: url, Label: "gone"})
	var transportErr *core.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "gone", transportErr.Op)
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(Options{HTTP: server.Client(), Breaker: BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}})
	for i := 0; i < 2; i++ {
		_, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL})
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL, Label: "open"})
	var transportErr *core.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, int32(2), hits.Load())
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Options{HTTP: server.Client(), Breaker: BreakerSettings{MaxFailures: 1}})
	for i := 0; i < 3; i++ {
		_, err := client.Invoke(context.Background(), core.UpstreamRequest{URL: server.URL})
		require.True(t, core.IsNotFound(err))
	}
	require.Equal(t, gobreaker.StateClosed, client.State())
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	header := http.Header{}
	require.Zero(t, retryAfter(header, now))

	header.Set("Retry-After", "3")
	require.Equal(t, 3*time.Second, retryAfter(header, now))

	header.Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))
	require.Equal(t, 90*time.Second, retryAfter(header, now))

	header.Set("Retry-After", "soon")
	require.Zero(t, retryAfter(header, now))
}
