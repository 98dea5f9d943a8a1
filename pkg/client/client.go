package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// ErrMalformedResponse is returned when a 200 response cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response body")

// APIError is a non-2xx response other than 404.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateguard: HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateguard: HTTP %d: %s", e.StatusCode, e.Message)
}

// Health is the body of GET /health.
type Health struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	ModelVersion string `json:"model_version"`
}

// ScoreRequest is the payload for Score. RequestID is generated by the
// server when empty.
type ScoreRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Host      string `json:"host"`
	Path      string `json:"path,omitempty"`
}

// ScoreResult is a scoring decision.
type ScoreResult struct {
	RequestID    string  `json:"request_id"`
	ModelVersion string  `json:"model_version"`
	Score        float64 `json:"score"`
	Label        string  `json:"label"`
	Threshold    float64 `json:"threshold"`
	LatencyMS    int64   `json:"latency_ms"`
}

// Malicious reports whether the server labelled the request malicious.
func (r *ScoreResult) Malicious() bool { return r.Label == "malicious" }

// Client is the GateGuard SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithToken attaches the API bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = strings.TrimSpace(token)
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
// Engines typically use a short timeout so timeout_test requests fail fast.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at baseURL.
//
//	c, err := client.New("http://localhost:8000",
//	    client.WithToken("changeme-token"),
//	    client.WithTimeout(2*time.Second),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Score calls POST /v1/score.
func (c *Client) Score(ctx context.Context, sr ScoreRequest) (*ScoreResult, error) {
	if sr.Host == "" {
		return nil, errors.New("host is required")
	}
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res ScoreResult
	if err := decode(body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// do executes an HTTP request, attaching the bearer token if present, and
// maps non-2xx responses to errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
		}
		return nil, apiErr
	}
	return body, nil
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
