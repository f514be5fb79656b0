// Package aeso provides a rate-limited client for the AESO reporting API.
package aeso

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/retry"
)

const (
	DefaultBaseURL   = "https://api.aeso.ca/"
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 2 // requests per second

	maxErrorBody = 4 << 10
)

// ErrTransport is wrapped by every TransportError.
var ErrTransport = errors.New("transport error")

// TransportError is a failed fetch: a network failure, a non-200 status or a
// body without the "return" member.
type TransportError struct {
	Endpoint   string
	Window     string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s [%s]", e.Endpoint, e.Window)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// Temporary reports whether the failure may succeed on a later attempt.
func (e *TransportError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return e.Err != nil && !errors.Is(e.Err, errMissingReturn)
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

var errMissingReturn = errors.New(`response has no "return" member`)

// Client fetches raw report batches.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Config
	logger     *zap.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit sets the sustained request rate. Zero or less disables
// limiting.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the backoff policy for temporary transport failures.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retry:      retry.DefaultConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("aeso")
	return c
}

// Fetch retrieves one window of an endpoint. Temporary transport failures
// are retried with backoff; the last failure is returned as a
// *TransportError.
func (c *Client) Fetch(ctx context.Context, cfg domain.EndpointConfig, w domain.FetchWindow) (domain.RawBatch, error) {
	reqURL, err := c.requestURL(cfg, w)
	if err != nil {
		return domain.RawBatch{}, err
	}

	var payload json.RawMessage
	op := cfg.ID + " " + w.String()
	err = retry.WithBackoff(ctx, c.retry, c.logger, op, func() error {
		p, err := c.get(ctx, cfg, w, reqURL)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) && !te.Temporary() {
				return retry.Permanent(err)
			}
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return domain.RawBatch{}, err
	}

	return domain.RawBatch{Endpoint: cfg, Window: w, Payload: payload}, nil
}

// requestURL builds base_url + report_path with the window's date range.
func (c *Client) requestURL(cfg domain.EndpointConfig, w domain.FetchWindow) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(cfg.ReportPath, "/"))
	if err != nil {
		return "", fmt.Errorf("build url for %s: %w", cfg.ID, err)
	}

	q := u.Query()
	switch cfg.Granularity {
	case domain.GranularityAnnual:
		q.Set("startDate", w.Start.Format(domain.DateLayout))
		q.Set("endDate", w.End.Format(domain.DateLayout))
	case domain.GranularityDaily:
		q.Set("startDate", w.Start.Format(domain.DateLayout))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// get performs one rate-limited GET and returns the "return" member.
func (c *Client) get(ctx context.Context, cfg domain.EndpointConfig, w domain.FetchWindow, reqURL string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("accept", "application/json")

	c.logger.Debug("request",
		zap.String("endpoint", cfg.ID),
		zap.String("window", w.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Endpoint: cfg.ID, Window: w.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Endpoint:   cfg.ID,
			Window:     w.String(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var envelope struct {
		Return json.RawMessage `json:"return"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &TransportError{Endpoint: cfg.ID, Window: w.String(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Return == nil {
		return nil, &TransportError{Endpoint: cfg.ID, Window: w.String(), Err: errMissingReturn}
	}
	return envelope.Return, nil
}
