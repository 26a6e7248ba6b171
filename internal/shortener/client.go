// Package shortener implements the HTTP client for the external
// AdLinkFly-compatible shortening service.
package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// shortURLFields are the response fields probed for a short URL,
// in priority order. The service is not consistent about which one it uses.
var shortURLFields = []string{"shortenedUrl", "short", "short_url", "url"}

type Config struct {
	BaseURL string
	APIKey  string
	APIPath string
	// Timeout bounds a single HTTP call. Defaults to 20s.
	Timeout time.Duration
	// MaxRetryTime bounds the total time spent retrying transient
	// failures. Defaults to 30s.
	MaxRetryTime time.Duration
}

// Client turns long URLs into short ones. It holds no per-call state beyond
// the shared connection pool and is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	apiPath      string
	maxRetryTime time.Duration
	httpClient   *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}
	if !strings.HasPrefix(cfg.APIPath, "/") {
		cfg.APIPath = "/" + cfg.APIPath
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		apiPath:      cfg.APIPath,
		maxRetryTime: cfg.MaxRetryTime,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Shorten requests a monetized short link for longURL. An empty alias is
// omitted from the request; a non-empty apiKeyOverride replaces the default
// key. Network failures and 5xx responses are retried with exponential
// backoff until the retry budget elapses; 4xx and unparsable responses
// surface immediately.
func (c *Client) Shorten(ctx context.Context, longURL, alias, apiKeyOverride string) (string, error) {
	const op = "shortener.Client.Shorten"

	apiKey := c.apiKey
	if apiKeyOverride != "" {
		apiKey = apiKeyOverride
	}

	query := url.Values{}
	query.Set("api", apiKey)
	query.Set("url", longURL)
	if alias != "" {
		query.Set("alias", alias)
	}
	endpoint := c.baseURL + c.apiPath + "?" + query.Encode()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryTime

	var lastErr error
	for {
		shortURL, err := c.attempt(ctx, endpoint)
		if err == nil {
			return shortURL, nil
		}
		if !isTransient(err) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return "", fmt.Errorf("%s: retry budget exhausted: %w", op, lastErr)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) attempt(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("server error: status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return "", &InvalidRequestError{Status: resp.StatusCode, Body: string(body)}
	}

	return parseShortURL(body)
}

// parseShortURL resolves the service's heterogeneous response shapes,
// in priority order: a JSON object carrying one of the known short-URL
// fields, then a bare http… text body.
func parseShortURL(body []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		trimmed := strings.TrimSpace(string(body))
		if strings.HasPrefix(trimmed, "http") {
			return trimmed, nil
		}
		return "", &UnparsableResponseError{Body: string(body)}
	}

	for _, field := range shortURLFields {
		if v, ok := payload[field].(string); ok && strings.HasPrefix(v, "http") {
			return v, nil
		}
	}

	return "", &UnparsableResponseError{Body: string(body)}
}

// isTransient reports whether an attempt failed in a way worth retrying.
// 4xx rejections and unparsable bodies will not improve on retry.
func isTransient(err error) bool {
	var invalidErr *InvalidRequestError
	var unparsableErr *UnparsableResponseError
	return !errors.As(err, &invalidErr) && !errors.As(err, &unparsableErr)
}
