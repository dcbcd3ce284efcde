package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiClient talks to a running `datacleaner serve`. The lookup cache lives
// in the server process, so cache commands go through it.
type apiClient struct {
	base   string
	apiKey string
	http   *http.Client
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s (Code: %s)", e.Status, e.Message, e.Code)
}

func newAPIClient(server, apiKey string) (*apiClient, error) {
	base, err := normalizeServerURL(server)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base:   base,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// normalizeServerURL adds a missing scheme and drops any path.
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", server)
	}
	return u.Scheme + "://" + u.Host, nil
}

// do sends a request and decodes a JSON response into out, which may be nil.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
