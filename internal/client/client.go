// Package client is a typed HTTP client for the quill API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/hpungsan/quill/internal/errors"
)

// SecretHeader carries the admin credential.
const SecretHeader = "X-Admin-Secret"

// Client talks to a quill server.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets how many times a GET is attempted and the base delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

// New creates a client for baseURL authenticating with secret.
func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableError marks a failure worth another GET attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Get performs a GET request and decodes the JSON response. Transport
// errors and 5xx responses are retried.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	err := retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, result)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var re *retryableError
			return stderrors.As(err, &re)
		}),
	)
	var re *retryableError
	if stderrors.As(err, &re) {
		return re.err
	}
	return err
}

// GetRaw performs a GET and returns the body unparsed.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	var raw rawBody
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Post performs a POST request with JSON body and decodes the response.
// POSTs are never retried.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return unwrapRetryable(c.do(ctx, http.MethodPost, path, body, result))
}

// Delete performs a DELETE request. DELETEs are never retried.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return unwrapRetryable(c.do(ctx, http.MethodDelete, path, nil, result))
}

func unwrapRetryable(err error) error {
	var re *retryableError
	if stderrors.As(err, &re) {
		return re.err
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{err: errors.NewIOFailure(method+" "+path, err)}
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: errors.NewIOFailure("read response", err)}
	}

	if resp.StatusCode >= 400 {
		qe := decodeError(resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			return &retryableError{err: qe}
		}
		return qe
	}

	if raw, ok := result.(*rawBody); ok {
		*raw = body
		return nil
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type rawBody []byte

// errorResponse matches the server's error envelope.
type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Status  int            `json:"status"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// decodeError turns an error response back into a QuillError.
func decodeError(status int, body []byte) *errors.QuillError {
	var env errorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Code != "" {
		return &errors.QuillError{
			Code:    errors.ErrorCode(env.Error.Code),
			Status:  status,
			Message: env.Error.Message,
			Details: env.Error.Details,
		}
	}
	return &errors.QuillError{
		Code:    errors.ErrInternal,
		Status:  status,
		Message: fmt.Sprintf("server error (%d): %s", status, strings.TrimSpace(string(body))),
	}
}

func promptPath(id string, rest ...string) string {
	p := "/api/prompts/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}
