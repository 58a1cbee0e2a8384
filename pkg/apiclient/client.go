// Package apiclient provides a REST API client for the GroupBin server.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Client is the GroupBin API client.
//
// The server tracks unlocked groups on a cookie session, so every client
// carries a cookie jar: once Unlock succeeds, later requests on the same
// client pass the password gates.
type Client struct {
	baseURL string

	// httpClient serves the JSON endpoints with an overall timeout.
	// streamClient shares the jar but has no timeout, so large uploads
	// and downloads are not cut off mid-transfer.
	httpClient   *http.Client
	streamClient *http.Client
}

// New creates a new API client for the given base URL.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		streamClient: &http.Client{
			Jar: jar,
		},
	}
}

// WithTimeout returns a new client with the given timeout on JSON calls.
// The session jar is shared with the original client.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	httpClient := *c.httpClient
	httpClient.Timeout = timeout
	return &Client{
		baseURL:      c.baseURL,
		httpClient:   &httpClient,
		streamClient: c.streamClient,
	}
}

// do runs one JSON round trip. Error statuses come back as typed API
// errors; pass a nil result to discard the body.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

// getStream performs a GET request on the stream client and returns the
// raw response. Error statuses are decoded and their body is consumed;
// on success the caller owns the body.
func (c *Client) getStream(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return nil, decodeError(resp.StatusCode, respBody)
	}

	return resp, nil
}
