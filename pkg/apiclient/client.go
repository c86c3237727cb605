// Package apiclient provides a client for the umsd HTTP status API.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/umsd/pkg/api/handlers"
)

// Client is the umsd status API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client for baseURL (for example
// "http://127.0.0.1:8484").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// get performs a GET request and decodes the response envelope. The
// envelope is returned even for error statuses so callers can inspect it;
// err is an *APIError for any status >= 400.
func (c *Client) get(ctx context.Context, path string, data any) (*handlers.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	env := &handlers.Response{Data: data}
	if jerr := json.Unmarshal(body, env); jerr != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("failed to decode response: %w", jerr)
	}

	if resp.StatusCode >= 400 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return env, &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: msg}
	}
	return env, nil
}
