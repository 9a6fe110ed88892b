package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/observability"
)

const maxBodyBytes = 8 << 20

// BreakerSettings configures the circuit breaker in front of the provider.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// Options configures a Client.
type Options struct {
	APIKey    string
	UserAgent string
	HTTP      *http.Client
	Breaker   BreakerSettings
	Clock     func() time.Time
}

// Client performs single GET calls against the provider. It never retries;
// retry policy belongs to callers above the dispatch queue.
type Client struct {
	apiKey    string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[*core.UpstreamResponse]
	now       func() time.Time
}

// New returns a Client with a breaker that opens after consecutive
// transport or 5xx failures.
func New(opts Options) *Client {
	client := opts.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	maxFailures := opts.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.Breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	c := &Client{
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		http:      client,
		now:       now,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*core.UpstreamResponse](gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    opts.Breaker.Interval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the provider is up.
			return err == nil || !core.IsTransient(err) || core.IsRateLimited(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("Upstream circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// State returns the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Invoke performs req. Non-2xx responses become *core.StatusError and
// network failures become *core.TransportError.
func (c *Client) Invoke(ctx context.Context, req core.UpstreamRequest) (*core.UpstreamResponse, error) {
	resp, err := c.breaker.Execute(func() (*core.UpstreamResponse, error) {
		return c.do(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &core.TransportError{Op: req.Label, Err: err}
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req core.UpstreamRequest) (*core.UpstreamResponse, error) {
	target, err := c.withKey(req.URL)
	if err != nil {
		return nil, &core.TransportError{Op: req.Label, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &core.TransportError{Op: req.Label, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Op: req.Label, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &core.StatusError{
			StatusCode: resp.StatusCode,
			Label:      req.Label,
			RetryAfter: retryAfter(resp.Header, c.now()),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &core.TransportError{Op: req.Label, Err: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &core.TransportError{Op: req.Label, Err: fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)}
	}

	return &core.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) withKey(raw string) (string, error) {
	if c.apiKey == "" {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("api_key", c.apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// retryAfter reads Retry-After as delta seconds or an HTTP date.
func retryAfter(header http.Header, now time.Time) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(value); err == nil {
		if d := parsed.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
