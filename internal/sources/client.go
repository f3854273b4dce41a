// Package sources fetches address sets from external HTTP APIs: the governance
// vote export and the community circle roster.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"
)

// httpConfig holds settings for the HTTP client.
type httpConfig struct {
	timeout      time.Duration
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	retryMax     int
}

// HTTPOption configures the HTTP client.
type HTTPOption func(*httpConfig)

// NewHTTPClient returns a retryablehttp.Client. Defaults: 30s timeout,
// 2 retries waiting between 1s and 5s.
func NewHTTPClient(opts ...HTTPOption) *retryablehttp.Client {
	cfg := httpConfig{
		timeout:      30 * time.Second,
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 5 * time.Second,
		retryMax:     2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = cfg.timeout
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.RetryMax = cfg.retryMax
	return client
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = d
	}
}

// WithRetryMax sets the number of retries for failed requests.
func WithRetryMax(n int) HTTPOption {
	return func(c *httpConfig) {
		c.retryMax = n
	}
}

// WithRetryWait sets the bounds of the wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.retryWaitMin = minWait
		c.retryWaitMax = maxWait
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func doJSON(ctx context.Context, client *retryablehttp.Client, req *retryablehttp.Request, out interface{}) error {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
