package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// MaxRetryAfter caps a server-advised Retry-After delay.
	MaxRetryAfter time.Duration
}

var DefaultRetry = RetryConfig{
	MaxAttempts:   3,
	BaseDelay:     1 * time.Second,
	MaxDelay:      10 * time.Second,
	MaxRetryAfter: 60 * time.Second,
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitError is returned when the upstream kept answering 429 for
// every attempt.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("HTTP 429: retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return models.ErrRateLimited
}

// Do executes an HTTP request with exponential backoff retry.
// The buildReq function is called on each attempt to produce a fresh request
// (required because request bodies are consumed on each attempt).
// 5xx and transport errors are retried with backoff; 429 is retried after
// the server-advised Retry-After delay. Other statuses are returned as-is.
func Do(ctx context.Context, client Doer, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = DefaultRetry.MaxRetryAfter
	}

	b := &backoff.Backoff{Min: cfg.BaseDelay, Max: cfg.MaxDelay, Factor: 2}
	log := logx.Named("httputil")

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		delay := b.Duration()
		resp, err := client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %w", models.ErrTransientNetwork, err)
		case resp.StatusCode == http.StatusTooManyRequests:
			ra := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			if ra <= 0 {
				ra = delay
			}
			if ra > cfg.MaxRetryAfter {
				ra = cfg.MaxRetryAfter
			}
			drain(resp)
			lastErr = &RateLimitError{RetryAfter: ra}
			delay = ra
		case resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: HTTP %d: %s", models.ErrTransientNetwork, resp.StatusCode, string(body))
		default:
			return resp, nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn("request.retry",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// ParseRetryAfter reads a Retry-After header given either as seconds or as
// an HTTP date. Unparseable values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// Transport is an http.RoundTripper running every request through Do, so
// third-party clients built on *http.Client inherit the retry policy.
type Transport struct {
	Base  http.RoundTripper
	Retry RetryConfig
}

func NewClient(timeout time.Duration, cfg RetryConfig) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Retry: cfg},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	cfg := t.Retry
	if req.Body != nil && req.GetBody == nil {
		cfg.MaxAttempts = 1
	}

	first := true
	return Do(req.Context(), roundTripDoer{base}, cfg, func() (*http.Request, error) {
		if first {
			first = false
			return req, nil
		}
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}
		return clone, nil
	})
}

type roundTripDoer struct {
	rt http.RoundTripper
}

func (d roundTripDoer) Do(req *http.Request) (*http.Response, error) {
	return d.rt.RoundTrip(req)
}
