package amazonads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is returned for any non-2xx response from the advertising API or the
// token endpoint.
type APIError struct {
	Status  int             `json:"status"`
	Method  string          `json:"method,omitempty"`
	Path    string          `json:"path,omitempty"`
	Details json.RawMessage `json:"-"`
}

func (e *APIError) Error() string {
	details := strings.TrimSpace(string(e.Details))
	if len(details) > 300 {
		details = details[:300] + "..."
	}
	return fmt.Sprintf("amazon ads api %s %s returned %d: %s", e.Method, e.Path, e.Status, details)
}

// DetailsValue decodes Details for embedding in audit logs; non-JSON bodies come back
// as a plain string.
func (e *APIError) DetailsValue() any {
	if len(e.Details) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(e.Details, &v); err != nil {
		return string(e.Details)
	}
	return v
}

// AsAPIError unwraps err into an *APIError when one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Authorizer decorates outgoing requests with credentials. Implementations may add a
// bearer token or sign the request.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

type Request struct {
	Method    string
	Path      string
	ProfileID string
	Body      any
	Params    url.Values
	Headers   map[string]string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
}

// NewClient creates an Ads API client for baseURL
func NewClient(baseURL string, auth Authorizer, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
	}
}

// Do performs req and decodes a JSON response into out when out is non-nil. The raw
// body is returned as well for callers that need multi-status parsing.
func (c *Client) Do(ctx context.Context, req Request, out any) ([]byte, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + req.Path
	if len(req.Params) > 0 {
		endpoint += "?" + req.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Authorization") {
			slog.Warn("ignoring caller supplied Authorization header", "path", req.Path)
			continue
		}
		httpReq.Header.Set(k, v)
	}
	if req.ProfileID != "" {
		httpReq.Header.Set("Amazon-Advertising-API-Scope", req.ProfileID)
	}

	if c.auth != nil {
		if err := c.auth.Authorize(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("failed to authorize request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Method:  req.Method,
			Path:    req.Path,
			Details: respBody,
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return respBody, fmt.Errorf("failed to decode response from %s: %w", req.Path, err)
		}
	}
	return respBody, nil
}
