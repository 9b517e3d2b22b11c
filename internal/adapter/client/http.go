// Package client calls sibling services over JSON/HTTP behind a circuit
// breaker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// statusErrors maps a sibling's 4xx answer back onto the error taxonomy.
var statusErrors = map[int]error{
	http.StatusNotFound:            domain.ErrNotFound,
	http.StatusBadRequest:          domain.ErrInvalidArgument,
	http.StatusPaymentRequired:     domain.ErrInsufficientFunds,
	http.StatusTooManyRequests:     domain.ErrMovementLimitReached,
	http.StatusForbidden:           domain.ErrWithdrawalNotAllowed,
	http.StatusUnprocessableEntity: domain.ErrInvalidOperation,
	http.StatusConflict:            domain.ErrNotEligible,
}

// HTTPClient sends JSON requests to one sibling service. Transport errors
// and 5xx answers count against the breaker and are retried for GET and for
// requests carrying an idempotency key. Business rejections pass through
// untouched.
type HTTPClient struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	retries uint64
	logger  *slog.Logger
}

func NewHTTPClient(name, baseURL string, cfg config.Breaker, logger *slog.Logger) *HTTPClient {
	logger = logger.With("client", name)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		retries: cfg.Retries,
		logger:  logger,
	}
}

// Do sends in as the JSON body (when non-nil) and decodes a 2xx answer into
// out (when non-nil).
func (c *HTTPClient) Do(ctx context.Context, method, path string, in, out any) error {
	return c.DoIdempotent(ctx, method, path, "", in, out)
}

// DoIdempotent is Do with an Idempotency-Key header when key is non-empty.
// The sibling replays its first answer for a repeated key.
func (c *HTTPClient) DoIdempotent(ctx context.Context, method, path, key string, in, out any) error {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.name, err)
		}
		body = data
	}

	retries := c.retries
	if method != http.MethodGet && key == "" {
		retries = 0
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
		return nil, backoff.Retry(func() error {
			return c.attempt(ctx, method, path, key, body, out)
		}, b)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, c.name, err)
	}
	if domain.IsRejection(err) {
		return err
	}
	c.logger.Error("sibling call failed", "method", method, "path", path, "error", err)
	return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, c.name, err)
}

func (c *HTTPClient) attempt(ctx context.Context, method, path, key string, body []byte, out any) error {
	// 1. Prepare Request
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "GoSettle-Client/1.0")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	// 2. Send with Timeout
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 3. Check Response
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", c.name, err))
		}
		return nil
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s returned %d", c.name, resp.StatusCode)
	}
	return backoff.Permanent(rejection(resp.StatusCode, data))
}

func rejection(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	if sentinel, ok := statusErrors[status]; ok {
		// msg already starts with the sentinel text when it came from our own handlers.
		if strings.HasPrefix(msg, sentinel.Error()) {
			return fmt.Errorf("%w%s", sentinel, strings.TrimPrefix(msg, sentinel.Error()))
		}
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return fmt.Errorf("%w: unexpected status %d: %s", domain.ErrInvalidOperation, status, msg)
}
