package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseSize caps how much of a provider response is read.
const maxResponseSize = 25 << 20

// Client is a thin HTTP client shared by the provider adapters. It
// handles optional Bearer authentication, JSON marshaling, client-side
// rate limiting and automatic retry with backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	detail     func([]byte) string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit throttles outgoing requests to perSecond. Zero or a
// negative rate disables throttling.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithErrorDetail sets the function used to extract a human-readable
// message from an error response body.
func WithErrorDetail(fn func([]byte) string) ClientOption {
	return func(c *Client) {
		c.detail = fn
	}
}

// NewClient creates a new provider HTTP client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes a single provider call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// Token, when set, is sent as a Bearer credential.
	Token string
}

// URL resolves path and query against the client's base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL
	if path != "" {
		u = strings.TrimRight(u, "/") + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	token string,
	result interface{},
) error {
	return c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
		Token:  token,
	}, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, result)
}

// Do executes req and unmarshals a JSON response into result. A nil
// result discards the body.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	respBody, _, err := c.Raw(ctx, req)
	if err != nil {
		return err
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w",
			req.Method, req.Path, err,
		)
	}

	return nil
}

// Raw executes req and returns the response body and headers without
// decoding. Non-2xx responses are returned as *StatusError.
func (c *Client) Raw(ctx context.Context, req Request) ([]byte, http.Header, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.URL(req.Path, req.Query)

	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return nil, nil, fmt.Errorf("creating request: %w", err)
		}

		httpReq.Header.Set("Accept", "application/json")
		if req.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+req.Token)
		}
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, nil, fmt.Errorf("executing request %s %s: %w", method, req.Path, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if readErr != nil {
			return nil, nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       req.Path,
				Detail:     "rate limited",
			}

			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       req.Path,
			}
			if c.detail != nil {
				statusErr.Detail = c.detail(respBody)
			}
			return nil, nil, statusErr
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
