package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiVersion is the GitHub REST API version header. Pinning the version
// keeps behavior stable as GitHub evolves the API.
const apiVersion = "2022-11-28"

// maxResponseBytes bounds how much of an API response is read.
const maxResponseBytes = 4 << 20

// Client is a token-authenticated GitHub REST API client covering the
// repository provisioning and content publishing the job handler needs.
type Client struct {
	baseURL    string
	owner      string
	token      string
	httpClient *http.Client
}

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a GitHub API 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAlreadyExists reports whether err is the 422 GitHub returns when a
// resource with the same name exists.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity
}

// IsConflict reports whether err is a GitHub API 409 response.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// New builds a client for the given API base URL acting as owner.
func New(baseURL, owner, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		owner:      owner,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do executes one authenticated request against path (relative to the base
// URL) and decodes a 2xx JSON response into out when out is non-nil. Non-2xx
// responses come back as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, requestBody, out any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("github: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("github: reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("github: decoding response: %w", err)
		}
	}
	return nil
}

// apiMessage pulls the top-level "message" field out of a GitHub error
// body, falling back to the raw body when it is not the usual JSON shape.
func apiMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}
