package domain

import "time"

// MFAState is the caller-owned snapshot of a member's MFA material. The
// verifier receives it by value and never persists it; whatever must change
// as a result of a verification comes back in a StateDelta.
type MFAState struct {
	TOTPSecret      string   // base32 encoded shared secret, empty if not enrolled
	LastStep        *int64   // highest TOTP step ever accepted (nullable)
	BackupHashes    []string // peppered salt$hash entries, one per unused code
	FailedCount     int      // consecutive failed attempts, reset on success
	Methods         []Method // enrollment tags proven so far
	PasskeyEnrolled bool
	LastSuccessAt   *time.Time
}

// HasMethod reports whether the enrollment tag is already present.
func (s MFAState) HasMethod(m Method) bool {
	for _, have := range s.Methods {
		if have == m {
			return true
		}
	}
	return false
}

// StateDelta carries the state mutations the caller must persist after a
// successful verification. Nil fields mean "unchanged".
type StateDelta struct {
	NextLastStep     *int64
	NextBackupHashes []string // nil = unchanged; empty slice = all consumed
}

// OutOfBandChallenge is the expected value for an email/WhatsApp code,
// supplied by the delivery collaborator at verification time.
type OutOfBandChallenge struct {
	CodeFingerprint string // sha256 fingerprint of the delivered code
	ExpiresAt       time.Time
}

// VerifyRequest is a single factor attempt.
type VerifyRequest struct {
	Factor                  Factor
	Token                   string
	UserID                  string
	Email                   string
	State                   MFAState
	OutOfBand               *OutOfBandChallenge // required for email/whatsapp
	RememberDeviceRequested bool
}

// Outcome is the verifier's complete answer for one attempt. It is ephemeral;
// the caller persists the delta and audit fields, never the outcome itself.
type Outcome struct {
	OK             bool
	Factor         Factor
	Reason         FailureReason // empty when OK
	Status         int           // HTTP status hint for the caller's response mapping
	Delta          StateDelta
	UsedBackup     bool
	RememberDevice bool
	AuditAction    string
	AuditDetails   map[string]any
}
