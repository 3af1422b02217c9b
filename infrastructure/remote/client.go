// Package remote implements the storage ports against the document server's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErrors "concept-tree/pkg/errors"

	"go.uber.org/zap"
)

// Client talks to the /api/v1 surface of the document server
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote base url must be http or https, got %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: u, httpClient: httpClient, logger: logger}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + "/api/v1/" + strings.TrimLeft(path, "/")
}

// errorBody mirrors the server's error response
type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes a JSON response into out when it is non-nil
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return appErrors.NewTimeoutError(method + " " + path).WithCause(err)
		}
		return appErrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var body errorBody
	json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	message := body.Message
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return appErrors.NewNotFoundError(path)
	case resp.StatusCode == http.StatusBadRequest:
		return appErrors.NewValidationError(message)
	case resp.StatusCode == http.StatusConflict:
		return appErrors.NewConflictError(message)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return appErrors.NewUnavailableError("remote").WithCause(fmt.Errorf("%s", message))
	default:
		return appErrors.NewExternalError("remote", fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, message))
	}
}
