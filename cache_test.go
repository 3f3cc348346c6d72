package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCachingRoundTripperServesFromDisk(t *testing.T) {
	calls := 0
	rt := &CachingRoundTripper{
		UnderlyingTransport: &MockRoundTripper{Handler: func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(`{"ok": true}`), nil
		}},
		CacheDir: t.TempDir(),
		TTL:      time.Minute,
	}

	req := httptest.NewRequest(http.MethodGet, "https://api.octopus.energy/v1/whatever", nil)
	for i := 0; i < 3; i++ {
		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"ok": true}`, string(body))
	}
	require.Equal(t, 1, calls, "Subsequent GETs must be served from the cache")
}

func TestCachingRoundTripperExpiry(t *testing.T) {
	calls := 0
	rt := &CachingRoundTripper{
		UnderlyingTransport: &MockRoundTripper{Handler: func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(`{}`), nil
		}},
		CacheDir: t.TempDir(),
		TTL:      time.Nanosecond,
	}

	req := httptest.NewRequest(http.MethodGet, "https://api.octopus.energy/v1/whatever", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, 2, calls, "An expired entry must be refetched")
}

func TestCachingRoundTripperSkipsPost(t *testing.T) {
	calls := 0
	rt := &CachingRoundTripper{
		UnderlyingTransport: &MockRoundTripper{Handler: func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(`{}`), nil
		}},
		CacheDir: t.TempDir(),
	}

	req := httptest.NewRequest(http.MethodPost, "https://api.octopus.energy/v1/graphql/", nil)
	for i := 0; i < 2; i++ {
		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls, "POST requests are never cached")
}
