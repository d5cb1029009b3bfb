package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"

	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/schemas"
)

const (
	DefaultTimeout    = 10 * time.Second
	defaultRetryDelay = 200 * time.Millisecond
	defaultMaxDelay   = 5 * time.Second

	// Response bodies are drained up to this size so connections can be reused.
	maxDrainBytes = 64 << 10
)

// Config holds the endpoints and transport knobs for Client.
type Config struct {
	TrackURL string
	ResetURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// Timeout applies to the default http.Client only.
	Timeout time.Duration

	// Retries re-sends after transport errors. Non-200 responses are never retried.
	Retries       int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxDelay
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = c.RetryDelay
	}
	return c
}

// Validate checks that the configured URLs are absolute http(s) URLs.
// An empty ResetURL is allowed; Reset then fails with a transport error.
func (c Config) Validate() error {
	if err := validateURL("track url", c.TrackURL); err != nil {
		return err
	}
	if c.ResetURL != "" {
		if err := validateURL("reset url", c.ResetURL); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https (got %q)", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", name)
	}
	return nil
}

// Client talks to the remote tracking API. It is safe for concurrent use.
type Client struct {
	cfg      Config
	http     *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
}

// NewClient builds a Client. httpClient may be nil, in which case one with
// cfg.Timeout is created.
func NewClient(cfg Config, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalize()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		executor: failsafe.With(newRetryPolicy(cfg, logger)),
		logger:   logger,
	}, nil
}

// newRetryPolicy retries transport errors only. A response of any status is
// final, and a cancelled context is never retried.
//
//nolint:bodyclose // *http.Response is a type parameter here, not a live response
func newRetryPolicy(cfg Config, logger logging.Logger) retrypolicy.RetryPolicy[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(_ *http.Response, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		WithMaxRetries(cfg.Retries).
		WithBackoff(cfg.RetryDelay, cfg.MaxRetryDelay).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			logger.WithFields(logging.Fields{
				"attempt": e.Attempts(),
				"error":   e.LastError(),
			}).Debug("Retrying tracking request")
		}).
		Build()
}

// Send posts one event to the track endpoint.
func (c *Client) Send(ctx context.Context, event *schemas.SyntheticEvent) Result {
	payload, err := json.Marshal(event)
	if err != nil {
		// Not a transport problem, but nothing was sent either.
		return Result{Outcome: TransportFailure, Err: fmt.Errorf("marshal event: %w", err)}
	}
	return c.do(ctx, http.MethodPost, c.cfg.TrackURL, payload)
}

// Reset asks the remote side to drop everything it stored.
func (c *Client) Reset(ctx context.Context) Result {
	if c.cfg.ResetURL == "" {
		return Result{Outcome: TransportFailure, Err: errors.New("reset url is not configured")}
	}
	return c.do(ctx, http.MethodDelete, c.cfg.ResetURL, nil)
}

//nolint:bodyclose // closed in drain
func (c *Client) do(ctx context.Context, method, target string, payload []byte) Result {
	start := time.Now()
	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("X-API-Key", c.cfg.APIKey)
		}
		req.Header.Set("X-Request-Id", uuid.NewString())
		return c.http.Do(req)
	})
	latency := time.Since(start)

	if err != nil {
		if resp != nil {
			drain(resp)
		}
		return Result{Outcome: TransportFailure, Err: err, Latency: latency}
	}
	drain(resp)

	if resp.StatusCode != http.StatusOK {
		return Result{
			Outcome:    RejectedStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
			Latency:    latency,
		}
	}
	return Result{Outcome: Success, StatusCode: resp.StatusCode, Latency: latency}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()
}
