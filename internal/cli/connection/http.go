package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single admin request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-OK envelope returned by the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Details   any
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != nil {
		msg += fmt.Sprintf(": %v", e.Details)
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// HTTPClient talks to one admin endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for server. server is host:port, an
// http(s) URL, or unix:///path/to/admin.sock for the local socket.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	if path, ok := strings.CutPrefix(server, "unix://"); ok {
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		}
		return &HTTPClient{baseURL: "http://unix", client: client}
	}

	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPClient{baseURL: baseURL, client: client}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get fetches path and decodes the envelope data into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the envelope data into out.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Delete removes the resource at path.
func (c *HTTPClient) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "eventlink-cli")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

// decode unwraps an envelope. Bodies that are not envelopes still yield an
// APIError carrying the HTTP status.
func decode(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Code: "HTTP", Message: resp.Status}
		}
		return fmt.Errorf("parse response: %w", err)
	}

	failed := resp.StatusCode >= 400 || (env.Code != "" && env.Code != "OK")
	hasData := out != nil && len(env.Data) > 0 && string(env.Data) != "null"
	if failed {
		// Endpoints such as /ready still describe themselves in data.
		details := env.Details
		if hasData {
			if err := json.Unmarshal(env.Data, out); err != nil {
				details = dataError(env.Details, err)
			}
		}
		return &APIError{
			Status:    resp.StatusCode,
			Code:      env.Code,
			Message:   env.Message,
			RequestID: env.RequestID,
			Details:   details,
		}
	}
	if !hasData {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// PathEscape escapes one path segment such as a table or node name.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// dataError folds a failure to decode the data of an error envelope into
// its details.
func dataError(details any, err error) string {
	if details == nil {
		return "parse response data: " + err.Error()
	}
	return fmt.Sprintf("%v; parse response data: %v", details, err)
}
