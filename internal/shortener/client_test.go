package shortener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t testing.TB, handler http.HandlerFunc) *Client {
	return setupClientWithBudget(t, handler, 500*time.Millisecond)
}

func setupClientWithBudget(t testing.TB, handler http.HandlerFunc, budget time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:      srv.URL,
		APIKey:       "default-key",
		APIPath:      "/api",
		MaxRetryTime: budget,
	})
}

func TestClient_Shorten(t *testing.T) {
	t.Run("builds request from effective key, url and alias", func(t *testing.T) {
		var gotQuery map[string][]string
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			assert.Equal(t, "/api", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Write([]byte(`{"shortenedUrl": "http://s/1"}`))
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "promo", "user-key")

		require.NoError(t, err)
		assert.Equal(t, "http://s/1", shortURL)
		assert.Equal(t, []string{"user-key"}, gotQuery["api"])
		assert.Equal(t, []string{"http://example.com/a"}, gotQuery["url"])
		assert.Equal(t, []string{"promo"}, gotQuery["alias"])
	})

	t.Run("falls back to the default key and omits empty alias", func(t *testing.T) {
		var gotQuery map[string][]string
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.Write([]byte(`{"short": "http://s/2"}`))
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		require.NoError(t, err)
		assert.Equal(t, "http://s/2", shortURL)
		assert.Equal(t, []string{"default-key"}, gotQuery["api"])
		assert.NotContains(t, gotQuery, "alias")
	})

	t.Run("bare url body", func(t *testing.T) {
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("  http://s/3\n"))
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		require.NoError(t, err)
		assert.Equal(t, "http://s/3", shortURL)
	})

	t.Run("unparsable json response", func(t *testing.T) {
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": "bad"}`))
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		assert.Error(t, err)
		var unparsableErr *UnparsableResponseError
		assert.ErrorAs(t, err, &unparsableErr)
		assert.Equal(t, `{"error": "bad"}`, unparsableErr.Body)
		assert.Empty(t, shortURL)
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls atomic.Int64
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("invalid key"))
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		assert.Error(t, err)
		var invalidErr *InvalidRequestError
		assert.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, http.StatusForbidden, invalidErr.Status)
		assert.Equal(t, "invalid key", invalidErr.Body)
		assert.Empty(t, shortURL)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("5xx is retried until success", func(t *testing.T) {
		var calls atomic.Int64
		c := setupClientWithBudget(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"short_url": "http://s/4"}`))
		}, 5*time.Second)

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		require.NoError(t, err)
		assert.Equal(t, "http://s/4", shortURL)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("5xx fails after the retry budget elapses", func(t *testing.T) {
		var calls atomic.Int64
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		shortURL, err := c.Shorten(context.Background(), "http://example.com/a", "", "")

		assert.Error(t, err)
		assert.Empty(t, shortURL)
		assert.Greater(t, calls.Load(), int64(1))
	})

	t.Run("context cancellation stops retrying", func(t *testing.T) {
		c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.Shorten(ctx, "http://example.com/a", "", "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestParseShortURL(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "shortenedUrl field", body: `{"shortenedUrl": "http://s/1"}`, want: "http://s/1"},
		{name: "short field", body: `{"short": "http://s/2"}`, want: "http://s/2"},
		{name: "short_url field", body: `{"short_url": "http://s/3"}`, want: "http://s/3"},
		{name: "url field", body: `{"url": "http://s/4"}`, want: "http://s/4"},
		{name: "field priority", body: `{"url": "http://s/low", "shortenedUrl": "http://s/high"}`, want: "http://s/high"},
		{name: "non-http field value skipped", body: `{"short": "ftp://s/5", "url": "http://s/5"}`, want: "http://s/5"},
		{name: "bare url", body: "http://s/6", want: "http://s/6"},
		{name: "bare url with whitespace", body: "\nhttp://s/7 ", want: "http://s/7"},
		{name: "unknown json shape", body: `{"error": "bad"}`, wantErr: true},
		{name: "non-string field value", body: `{"url": 42}`, wantErr: true},
		{name: "plain text", body: "internal error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseShortURL([]byte(tt.body))

			if tt.wantErr {
				assert.Error(t, err)
				var unparsableErr *UnparsableResponseError
				assert.ErrorAs(t, err, &unparsableErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
