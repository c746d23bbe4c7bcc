package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"contactform/internal/domain"
)

// maxErrorBody bounds how much of any response body is read
const maxErrorBody = 64 << 10

// Endpoint receives validated contact form submissions
type Endpoint interface {
	Submit(ctx context.Context, payload domain.SubmissionPayload) error
}

// RejectedError is returned when the endpoint answers with a non-success status
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("submission rejected with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("submission rejected with status %d", e.StatusCode)
}

// TransportError is returned when no response could be obtained
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submission transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client posts submissions as JSON to a remote URL
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: d}
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new submission client
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the payload once. Any 2xx status is accepted and its body ignored.
func (c *Client) Submit(ctx context.Context, payload domain.SubmissionPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("submission request failed", zap.Error(err))
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Info("submission accepted", zap.Int("status", resp.StatusCode))
		return nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		c.logger.Warn("error reading rejection body", zap.Error(err))
	}
	c.logger.Info("submission rejected", zap.Int("status", resp.StatusCode))
	return &RejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

// Message returns the server text when it carries any, otherwise fallback
func (e *RejectedError) Message(fallback string) string {
	if e.Body == "" {
		return fallback
	}
	return e.Body
}
