package recommend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestWebhookFetcherFetch(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doubleEncodedPayload))
	}))
	defer srv.Close()

	fetcher, err := NewWebhookFetcher(srv.URL, time.Second)
	require.NoError(t, err)

	result, err := fetcher.Fetch(context.Background(), "Paris ")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"term": "Paris "}, gotBody)
	require.Equal(t, sampleResult(), result)
}

func TestWebhookFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("workflow crashed"))
	}))
	defer srv.Close()

	fetcher, err := NewWebhookFetcher(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), "Paris")
	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeFetch, typed.Code)
	require.Equal(t, http.StatusInternalServerError, typed.StatusCode)
	require.Contains(t, err.Error(), "workflow crashed")
}

func TestWebhookFetcherMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	fetcher, err := NewWebhookFetcher(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), "Paris")
	require.True(t, IsCode(err, ErrCodeFetch))
	// the decode failure stays reachable through the chain
	typed, _ := AsError(err)
	inner, ok := AsError(typed.Err)
	require.True(t, ok)
	require.Equal(t, ErrCodeDecode, inner.Code)
}

func TestWebhookFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	fetcher, err := NewWebhookFetcher(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), "Paris")
	require.True(t, IsCode(err, ErrCodeFetch))
}

func TestNewWebhookFetcherRequiresURL(t *testing.T) {
	_, err := NewWebhookFetcher("  ", time.Second)
	require.Error(t, err)
}

func TestTruncateForLog(t *testing.T) {
	out, truncated := truncateForLog([]byte("short"), 10)
	require.Equal(t, "short", out)
	require.False(t, truncated)

	out, truncated = truncateForLog([]byte(strings.Repeat("a", 20)), 10)
	require.Len(t, out, 10)
	require.True(t, truncated)
}
