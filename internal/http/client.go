package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/redmine-ws/internal/auth"
	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// Static errors for err113 compliance.
var (
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// Client is the raw HTTP engine: it joins paths to the base URL, attaches
// credentials, performs the one-time handshake Basic auth needs, and maps
// non-success statuses to *redmine.ResponseError.
type Client struct {
	baseURL     string
	credentials auth.Credentials
	httpClient  *retryablehttp.Client
	logger      redmine.Logger
	debug       bool
	userAgent   string
	contentType string
	limiter     *rate.Limiter
	tracing     bool

	handshakeMu   sync.Mutex
	handshakeDone bool
	handshakeErr  error
}

// Request represents an HTTP request. Body is sent verbatim when it is a
// []byte and JSON-encoded otherwise.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger redmine.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithContentType sets the media type of request bodies.
func WithContentType(contentType string) Option {
	return func(c *Client) {
		if contentType != "" {
			c.contentType = contentType
		}
	}
}

// WithRetryConfig enables retries of 5xx and 429 responses.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient.HTTPClient = hc
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithRateLimit caps the request rate. A non-positive limit disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil

			return
		}

		if burst <= 0 {
			burst = constants.DefaultRateBurst
		}

		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTracing wraps the transport with OpenTelemetry instrumentation.
func WithTracing(enabled bool) Option {
	return func(c *Client) {
		c.tracing = enabled
	}
}

// NewClient creates a new HTTP client. credentials may be nil for anonymous
// access.
func NewClient(baseURL string, credentials auth.Credentials, opts ...Option) *Client {
	base := cleanhttp.DefaultPooledClient()
	base.Timeout = constants.DefaultHTTPTimeout

	retryClient := &retryablehttp.Client{
		HTTPClient:   base,
		RetryWaitMin: constants.DefaultRetryWaitMin,
		RetryWaitMax: constants.DefaultRetryWaitMax,
		RetryMax:     constants.DefaultRetryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.LinearJitterBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	client := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  retryClient,
		logger:      redmine.NoopLogger{},
		userAgent:   constants.DefaultUserAgent,
		contentType: constants.ContentTypeJSON,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.tracing {
		transport := client.httpClient.HTTPClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}

		client.httpClient.HTTPClient.Transport = otelhttp.NewTransport(transport)
	}

	return client
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes an HTTP request. For a non-success status both the response
// and a *redmine.ResponseError are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	err := c.ensureHandshake(ctx)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

// ensureHandshake runs the handshake until it reaches a verdict. Success and
// a rejection from the server are remembered for the life of the client;
// anything short of a server answer (a cancelled context, an expired
// deadline, a dropped connection) is returned and retried on the next call.
func (c *Client) ensureHandshake(ctx context.Context) error {
	if c.credentials == nil || !c.credentials.NeedsHandshake() {
		return nil
	}

	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	if c.handshakeDone {
		return c.handshakeErr
	}

	err := c.handshake(ctx)

	var respErr *redmine.ResponseError
	if err == nil || errors.As(err, &respErr) {
		c.handshakeDone = true
		c.handshakeErr = err
	}

	return err
}

func (c *Client) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	_, err := c.do(ctx, &Request{Method: http.MethodGet})
	if err != nil {
		return fmt.Errorf("%w against %s: %w", constants.ErrHandshakeFailed, c.baseURL, err)
	}

	c.logger.Debug("authentication handshake complete", map[string]interface{}{
		"url": c.baseURL,
	})

	return nil
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    redactedURL(httpReq.URL),
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s: %w", req.Method, c.displayPath(req.Path), err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status": httpResp.StatusCode,
			"bytes":  len(body),
		})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}

	if httpResp.StatusCode >= constants.HTTPStatusBadRequest {
		return resp, c.responseError(req, httpResp, body)
	}

	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, req *Request) (*retryablehttp.Request, error) {
	target, err := url.Parse(c.join(req.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}

		target.RawQuery = q.Encode()
	}

	var body io.Reader

	if req.Body != nil {
		payload, ok := req.Body.([]byte)
		if !ok {
			payload, err = json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}
		}

		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", constants.ContentTypeJSON)
	httpReq.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		httpReq.Header.Set("Content-Type", c.contentType)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if c.credentials != nil {
		c.credentials.Apply(httpReq)
	}

	retryReq, err := retryablehttp.FromRequest(httpReq)
	if err != nil {
		return nil, fmt.Errorf("creating retryable request: %w", err)
	}

	return retryReq, nil
}

// join attaches path to the base URL with exactly one separating slash.
func (c *Client) join(path string) string {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return c.baseURL
	}

	return c.baseURL + "/" + path
}

func (c *Client) displayPath(path string) string {
	if path == "" {
		return c.baseURL
	}

	return path
}

func (c *Client) responseError(req *Request, httpResp *http.Response, body []byte) error {
	respErr := &redmine.ResponseError{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Method:     req.Method,
		Path:       c.displayPath(req.Path),
		Body:       body,
	}

	var payload struct {
		Errors []string `json:"errors"`
	}

	if json.Unmarshal(body, &payload) == nil {
		respErr.Messages = payload.Errors
	}

	return respErr
}

// redactedURL hides an API key carried in the query string.
func redactedURL(u *url.URL) string {
	q := u.Query()
	if q.Get(constants.APIKeyQueryParam) == "" {
		return u.String()
	}

	q.Set(constants.APIKeyQueryParam, "REDACTED")

	clone := *u
	clone.RawQuery = q.Encode()

	return clone.String()
}
