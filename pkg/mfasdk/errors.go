package mfasdk

import (
	"fmt"
	"time"
)

// Error codes the service emits. Verification failures use the closed
// failure-reason set; the rest cover request and transport problems.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidCode          = "invalid_code"
	ErrorCodeInvalidBackupCode    = "invalid_backup_code"
	ErrorCodeInvalidOutOfBandCode = "invalid_out_of_band_code"
	ErrorCodeAssertionFailed      = "assertion_failed"
	ErrorCodeNotEnrolled          = "not_enrolled"
	ErrorCodeRateLimited          = "rate_limited"
	ErrorCodeServerError          = "server_error"
	ErrorCodeNotImplemented       = "not_implemented"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// RateLimitError is a 429 rejection. RetryAt is when the budget window
// reopens; Scope says which budget tripped ("user" or "ip").
type RateLimitError struct {
	RetryAt time.Time
	Scope   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s scope), retry at %s", e.Scope, e.RetryAt.Format(time.RFC3339))
}
