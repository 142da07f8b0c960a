package mfasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the MFA verification service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a sensible request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify submits one challenge response. Verification failures and rate
// limits come back as *APIError and *RateLimitError respectively; a plain
// error means the request never got a decision.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var out VerifyResponse
	if err := c.postJSON(ctx, "/v1/mfa/verify", req, &out, http.StatusOK); err != nil {
		return VerifyResponse{}, err
	}
	return out, nil
}

// Initiate requests delivery of an out-of-band code.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	var out InitiateResponse
	if err := c.postJSON(ctx, "/v1/mfa/initiate", req, &out, http.StatusAccepted); err != nil {
		return InitiateResponse{}, err
	}
	return out, nil
}

// Livez checks the liveness endpoint.
func (c *Client) Livez(ctx context.Context) (HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readyz checks the readiness endpoint. A degraded service returns the
// response alongside an *APIError carrying the 503.
func (c *Client) Readyz(ctx context.Context) (HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return HealthResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, &APIError{StatusCode: resp.StatusCode, Code: ErrorCodeServerError, Description: out.Status}
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any, expectedStatus int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse turns an error body into a typed error. Unparseable
// bodies still yield an APIError with the status code.
func parseErrorResponse(statusCode int, raw []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return &APIError{
			StatusCode:  statusCode,
			Code:        ErrorCodeServerError,
			Description: http.StatusText(statusCode),
		}
	}

	if statusCode == http.StatusTooManyRequests && body.RetryAt != nil {
		return &RateLimitError{RetryAt: *body.RetryAt, Scope: body.Scope}
	}

	return &APIError{
		StatusCode:  statusCode,
		Code:        body.Code,
		Description: body.Description,
	}
}
