package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, retries int) *Client {
	return New(Options{
		Name:       "test",
		BaseURL:    baseURL,
		Headers:    map[string]string{"X-Api-Key": "secret"},
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, zerolog.Nop())
}

func TestGetDecodesJSONAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/series", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"title":"Show"}]`))
	}))
	defer srv.Close()

	var result []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	err := newTestClient(srv.URL+"/", 0).Get(context.Background(), "/api/v3/series", url.Values{"page": {"1"}}, &result)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 7, result[0].ID)
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var result map[string]bool
	require.NoError(t, newTestClient(srv.URL, 2).Get(context.Background(), "status", nil, &result))
	assert.True(t, result["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 3).Delete(context.Background(), "api/v3/episodefile/1", nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, "API request failed with status 404: missing", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFormBodyAndRawResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		_, _ = w.Write([]byte("Ok."))
	}))
	defer srv.Close()

	var raw string
	err := newTestClient(srv.URL, 0).Post(context.Background(), "api/v2/auth/login", url.Values{"username": {"admin"}}, &raw)
	require.NoError(t, err)
	assert.Equal(t, "Ok.", raw)
}

func TestNotConfigured(t *testing.T) {
	c := newTestClient("", 0)
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Get(context.Background(), "x", nil, nil), ErrNotConfigured)
}

func TestCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newTestClient(srv.URL, 10).Get(ctx, "x", nil, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
