package sideeffects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultCallTimeout = 30 * time.Second

var (
	ErrCallURLMissing = errors.New("external call requires a 'url' config value")
	ErrCallFailed     = errors.New("external call returned an error status")
)

// HTTPCaller performs outbound HTTP calls for external-call actions. Retries
// on connection failures and 5xx responses when the config asks for them.
type HTTPCaller struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPCaller(logger *slog.Logger) *HTTPCaller {
	return &HTTPCaller{
		client: &http.Client{Timeout: defaultCallTimeout},
		logger: logger.With("module", "http_caller"),
	}
}

// Call issues the request described by config. Recognized keys: url, method
// (default GET), headers (map of strings), body (string or JSON-encodable
// value) and retry {attempts, delay_seconds}.
func (c *HTTPCaller) Call(ctx context.Context, config map[string]any) error {
	url, _ := config["url"].(string)
	if url == "" {
		return ErrCallURLMissing
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	attempts, delay := parseRetry(config["retry"])

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.InfoContext(ctx, "Retrying external call", "url", url, "attempt", attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		status, err := c.do(ctx, method, url, config)
		if err == nil && status < 400 {
			return nil
		}

		if err != nil {
			lastErr = err

			continue
		}

		lastErr = fmt.Errorf("%w: %s %s -> %d", ErrCallFailed, method, url, status)

		// Client errors will not improve on retry.
		if status < 500 {
			return lastErr
		}
	}

	return lastErr
}

func (c *HTTPCaller) do(ctx context.Context, method, url string, config map[string]any) (int, error) {
	body, err := encodeBody(config["body"])
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, str)
			}
		}
	}

	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.logger.DebugContext(ctx, "External call completed", "url", url, "status", resp.StatusCode)

	return resp.StatusCode, nil
}

func encodeBody(raw any) (io.Reader, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(v), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}

		return strings.NewReader(string(encoded)), nil
	}
}

func parseRetry(raw any) (int, time.Duration) {
	attempts := 1
	delay := time.Duration(0)

	retry, ok := raw.(map[string]any)
	if !ok {
		return attempts, delay
	}

	if n, ok := retry["attempts"].(float64); ok && n >= 1 {
		attempts = int(n)
	}

	if d, ok := retry["delay_seconds"].(float64); ok && d > 0 {
		delay = time.Duration(d * float64(time.Second))
	}

	return attempts, delay
}
