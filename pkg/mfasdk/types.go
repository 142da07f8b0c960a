package mfasdk

import "time"

// VerifyRequest is the body of POST /v1/mfa/verify.
type VerifyRequest struct {
	UserID string `json:"user_id"`
	Factor string `json:"factor"` // totp, backup, email, whatsapp, passkey
	Token  string `json:"token"`

	// Email is the address an email code claims to have been sent to.
	// Optional for other factors.
	Email string `json:"email,omitempty"`

	// RememberDevice asks the service to mark this device trusted on
	// success. Passkey verifications are device-bound and always remember.
	RememberDevice bool `json:"remember_device,omitempty"`
}

// VerifyResponse is the success body of POST /v1/mfa/verify. The session
// and trusted-device tokens also travel as cookies for browser callers.
type VerifyResponse struct {
	Verified       bool   `json:"verified"`
	Factor         string `json:"factor"`
	RememberDevice bool   `json:"remember_device"`
	UsedBackup     bool   `json:"used_backup,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`

	SessionToken       string `json:"session_token,omitempty"`
	TrustedDeviceToken string `json:"trusted_device_token,omitempty"`
}

// InitiateRequest is the body of POST /v1/mfa/initiate.
type InitiateRequest struct {
	UserID string `json:"user_id"`
	Factor string `json:"factor"` // email or whatsapp

	// Destination is the address or phone number the code is delivered to.
	Destination string `json:"destination"`
}

// InitiateResponse is the success body of POST /v1/mfa/initiate. The code
// itself is never returned.
type InitiateResponse struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HealthChecks reports per-dependency status in a readiness response.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// EnrollTOTPRequest is the body of POST /v1/mfa/totp/enroll.
type EnrollTOTPRequest struct {
	UserID string `json:"user_id"`
	// AccountName labels the entry in the authenticator app, usually the
	// member's email address.
	AccountName string `json:"account_name"`
}

// EnrollTOTPResponse carries the provisioning material, shown exactly once.
type EnrollTOTPResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Issuer string `json:"issuer"`
}

// IssueBackupCodesRequest is the body of POST /v1/mfa/backup/issue.
type IssueBackupCodesRequest struct {
	UserID string `json:"user_id"`
}

// IssueBackupCodesResponse carries the plaintext codes, shown exactly once.
type IssueBackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`

	// RetryAt and Scope are set on rate-limit rejections.
	RetryAt *time.Time `json:"retry_at,omitempty"`
	Scope   string     `json:"scope,omitempty"`
}
