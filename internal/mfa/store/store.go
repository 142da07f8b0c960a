package store

import (
	"context"
	"errors"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Every write here is a single-row operation, so there is no
// cross-repository transaction surface; the service layer serializes attempts
// per user instead.
type Store interface {
	States() States
	Challenges() Challenges
	TrustedDevices() TrustedDevices
	Audit() Audit

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// States persists the per-member MFA state snapshot the verifier works from.
type States interface {
	// Get returns the state for a member, or ErrNotFound when the member has
	// never enrolled any factor.
	Get(ctx context.Context, userID string) (domain.MFAState, error)

	// Put stores a full snapshot. Used by enrollment and test seeding.
	Put(ctx context.Context, userID string, state domain.MFAState) error

	// RecordSuccess applies a verification delta: nil delta fields leave the
	// column unchanged; failed_count resets to zero; methods are unioned in.
	RecordSuccess(ctx context.Context, userID string, delta domain.StateDelta, methods []domain.Method, at time.Time) error

	// RecordFailure increments failed_count and returns the new value.
	RecordFailure(ctx context.Context, userID string) (int, error)

	// SetPasskeyEnrolled marks the member's passkey enrollment flag.
	SetPasskeyEnrolled(ctx context.Context, userID string) error
}

// Challenges persists pending out-of-band codes, one live challenge per
// (member, factor).
type Challenges interface {
	// Upsert replaces any pending challenge for the same member and factor.
	Upsert(ctx context.Context, c domain.Challenge) error

	// Get returns the pending challenge or ErrNotFound.
	Get(ctx context.Context, userID string, factor domain.Factor) (domain.Challenge, error)

	// Delete removes a consumed challenge. Deleting a missing row is not an
	// error.
	Delete(ctx context.Context, userID string, factor domain.Factor) error

	// DeleteExpired removes challenges past their expiry and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// TrustedDevices persists remember-device registrations.
type TrustedDevices interface {
	// Upsert registers or refreshes a device keyed on (user_id, device_id).
	Upsert(ctx context.Context, d domain.TrustedDevice) error

	// Find returns the device matching a fingerprint or ErrNotFound.
	Find(ctx context.Context, userID string, fingerprintHash string) (domain.TrustedDevice, error)

	// Touch bumps last_used_at for a device.
	Touch(ctx context.Context, userID, deviceID string, at time.Time) error

	// DeleteStale removes devices unused since the cutoff, returning the count.
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Audit persists terminal verification outcomes.
type Audit interface {
	Append(ctx context.Context, e domain.AuditEntry) error

	// ListRecent returns the newest entries for a member, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.AuditEntry, error)

	// DeleteOlderThan trims the log, returning the count removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
