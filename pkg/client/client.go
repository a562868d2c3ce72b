// Package client provides the HTTP client for the wellness platform backend
// with bearer authentication, request pacing, conditional GETs, bounded
// retries and a typed error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/cache"
	"github.com/Sternrassler/wellness-sync/pkg/logging"
	"github.com/Sternrassler/wellness-sync/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Authenticator supplies bearer tokens and handles rejected sessions.
// auth.Guard is the production implementation.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Unauthorized(ctx context.Context, reason string) bool
}

// Client is the backend client.
type Client struct {
	httpClient *http.Client
	auth       Authenticator
	limiter    *ratelimit.Limiter
	validators *cache.Validators
	retryClock clockwork.Clock
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.example.com"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Auth provides the bearer token (REQUIRED)
	Auth Authenticator

	// Timeout is the default per-attempt timeout
	Timeout time.Duration

	// Retry is the default policy for GET requests. Mutations are never
	// retried unless a call asks for it.
	Retry RetryPolicy

	// Rate limiting
	RateLimit float64 // Requests per second, 0 = unpaced
	RateBurst int

	// ConditionalRequests enables ETag revalidation of GET requests
	ConditionalRequests bool

	// Clock drives retry backoff and rate limit waits (default: wall clock)
	Clock clockwork.Clock

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string, auth Authenticator) Config {
	return Config{
		BaseURL:             baseURL,
		UserAgent:           "wellness-sync/0.1.0",
		Auth:                auth,
		Timeout:             15 * time.Second,
		Retry:               DefaultRetryPolicy(),
		RateLimit:           10,
		RateBurst:           5,
		ConditionalRequests: true,
	}
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	logger := logging.NewLogger(logging.ComponentClient)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Client{
		// Timeouts are applied per attempt through the request context.
		httpClient: &http.Client{},
		auth:       cfg.Auth,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst, clock, logger),
		retryClock: clock,
		config:     cfg,
		logger:     logger,
	}
	if cfg.ConditionalRequests {
		c.validators = cache.NewValidators()
	}
	return c, nil
}

// Request describes one logical backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Timeout overrides Config.Timeout for each attempt.
	Timeout time.Duration

	// Retry overrides the method default.
	Retry *RetryPolicy

	// Accept overrides the default "application/json".
	Accept string

	// Idempotent applies the GET retry policy to a non-GET request.
	Idempotent bool
}

// Response wraps a successful backend response.
type Response struct {
	Data        json.RawMessage
	StatusCode  int
	Headers     http.Header
	NotModified bool
	Attempts    int
}

// Decode unmarshals the response body into v. A body that does not match
// v is reported as a client-class *APIError; retrying will not fix it.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return &APIError{StatusCode: r.StatusCode, ErrorClass: ErrorClassClient, Message: "empty response body"}
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &APIError{StatusCode: r.StatusCode, ErrorClass: ErrorClassClient, Message: "decode response", Err: err}
	}
	return nil
}

// Option customizes a single call made through Get/Post/Put/Delete.
type Option func(*Request)

// WithQuery sets the query string.
func WithQuery(q url.Values) Option {
	return func(r *Request) { r.Query = q }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Request) { r.Timeout = d }
}

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(r *Request) { r.Retry = &p }
}

// WithAccept sets the Accept header, e.g. for binary downloads.
func WithAccept(accept string) Option {
	return func(r *Request) { r.Accept = accept }
}

// Idempotent marks a non-GET call as safe to retry, e.g. a filter POST.
func Idempotent() Option {
	return func(r *Request) { r.Idempotent = true }
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, build(http.MethodGet, path, nil, opts))
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...Option) (*Response, error) {
	return c.Do(ctx, build(http.MethodPost, path, body, opts))
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...Option) (*Response, error) {
	return c.Do(ctx, build(http.MethodPut, path, body, opts))
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, build(http.MethodDelete, path, nil, opts))
}

func build(method, path string, body any, opts []Option) Request {
	req := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Do executes a request with pacing, authentication, conditional GETs and
// the retry policy. Every failure is an *APIError (possibly wrapped with
// ErrRetryExhausted).
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	endpoint := req.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, &APIError{ErrorClass: ErrorClassClient, Message: "encode request body", Err: err}
		}
	}

	policy := c.config.Retry
	if req.Method != http.MethodGet && !req.Idempotent {
		policy = NoRetry()
	}
	if req.Retry != nil {
		policy = *req.Retry
	}

	timeout := c.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	target := c.buildURL(req.Path, req.Query)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing backend request")

	var resp *Response
	r := retrier{policy: policy, clock: c.retryClock, logger: c.logger}
	attempts, err := r.do(ctx, endpoint, func(attempt int) error {
		var attemptErr error
		resp, attemptErr = c.attempt(ctx, req, target, body, timeout, attempt)
		if attemptErr != nil {
			errClass := ClassOf(attemptErr)
			if errClass != ErrorClassCancelled {
				errorsTotal.WithLabelValues(string(errClass)).Inc()
			}
		}
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	resp.Attempts = attempts
	return resp, nil
}

// attempt performs exactly one HTTP exchange.
func (c *Client) attempt(ctx context.Context, req Request, target string, body []byte, timeout time.Duration, attempt int) (*Response, error) {
	endpoint := req.Path

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}

	token, err := c.auth.Token(ctx)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "unauthenticated").Inc()
		return nil, &APIError{
			StatusCode: http.StatusUnauthorized,
			ErrorClass: ErrorClassAuth,
			Message:    "not authenticated",
			Err:        errors.Join(ErrNotAuthenticated, err),
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, bodyReader)
	if err != nil {
		return nil, &APIError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}

	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	var validator *cache.Validator
	if req.Method == http.MethodGet && c.validators != nil {
		validator = c.validators.Get(target)
		cache.AddConditionalHeaders(httpReq, validator)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}

	c.limiter.UpdateFromResponse(httpResp.StatusCode, httpResp.Header)
	status := strconv.Itoa(httpResp.StatusCode)

	if httpResp.StatusCode == http.StatusNotModified {
		requestsTotal.WithLabelValues(endpoint, status).Inc()
		cache.NotModifiedResponses.Inc()
		if validator == nil {
			return nil, &APIError{
				StatusCode: http.StatusNotModified,
				ErrorClass: ErrorClassClient,
				Message:    "304 received but no cached response available",
			}
		}
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cached body")
		return &Response{
			Data:        validator.Body,
			StatusCode:  http.StatusOK,
			Headers:     httpResp.Header,
			NotModified: true,
		}, nil
	}

	if httpResp.StatusCode >= 400 {
		errClass := classifyStatus(httpResp.StatusCode)
		message := extractMessage(httpResp.StatusCode, respBody)
		requestsTotal.WithLabelValues(endpoint, status).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Msg("Backend request error")

		if errClass == ErrorClassAuth {
			if c.validators != nil {
				c.validators.Reset()
			}
			c.auth.Unauthorized(ctx, message)
		}

		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: errClass,
			Message:    message,
		}
	}

	requestsTotal.WithLabelValues(endpoint, status).Inc()

	if req.Method == http.MethodGet && c.validators != nil {
		c.validators.Set(target, cache.ValidatorFromResponse(httpResp, respBody))
	}

	return &Response{
		Data:       respBody,
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
	}, nil
}

// transportError classifies a failure that produced no HTTP status. The
// caller abandoning the request is a cancellation; everything else,
// including the per-attempt timeout, is a network failure.
func (c *Client) transportError(ctx context.Context, endpoint string, err error) *APIError {
	if ctx.Err() != nil {
		return &APIError{
			ErrorClass: ErrorClassCancelled,
			Message:    "request cancelled",
			Err:        fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()),
		}
	}

	message := "network failure"
	if errors.Is(err, context.DeadlineExceeded) {
		message = "request timed out"
	}

	requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
	c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")

	return &APIError{ErrorClass: ErrorClassNetwork, Message: message, Err: err}
}

func (c *Client) buildURL(path string, query url.Values) string {
	target := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Limiter returns the request limiter.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// ForgetValidators drops all stored ETags, forcing full responses.
func (c *Client) ForgetValidators() {
	if c.validators != nil {
		c.validators.Reset()
	}
}
