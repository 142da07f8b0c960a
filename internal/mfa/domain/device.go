package domain

import "time"

// TrustedDevice is a device a member chose to remember after a successful
// verification. Matching is done on the fingerprint hash; raw user agents and
// addresses are never stored.
type TrustedDevice struct {
	UserID          string
	DeviceID        string // random uuid minted at registration
	FingerprintHash string
	UserAgentHash   string
	IPPrefix        string
	LastUsedAt      time.Time
	CreatedAt       time.Time
}

// Challenge is a pending out-of-band code awaiting verification. Only the
// fingerprint of the delivered code is stored.
type Challenge struct {
	ID              string
	UserID          string
	Factor          Factor // email or whatsapp
	CodeFingerprint string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// AuditEntry records a terminal verification outcome.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}
