// Package verify implements the MFA factor verifier: given a claimed factor,
// a submitted token, and a caller-supplied state snapshot, it decides whether
// the attempt is valid right now and what the caller must persist as a
// result.
//
// The verifier performs no I/O of its own. Persistence, rate limiting, audit
// logging, and session issuance belong to the caller.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/replay"
)

var (
	// ErrUnsupportedFactor reports a factor outside the closed set. This is a
	// malformed request, not a verification failure.
	ErrUnsupportedFactor = errors.New("verify: unsupported factor")
	// ErrMissingUserID reports a request without a subject.
	ErrMissingUserID = errors.New("verify: missing user id")
	// ErrNoAssertionVerifier reports a passkey attempt without a configured
	// platform verifier.
	ErrNoAssertionVerifier = errors.New("verify: no assertion verifier configured")
)

// AssertionVerifier validates a passkey assertion cryptographically. The
// implementation lives outside this core; an error means the collaborator
// could not answer (infrastructure, never a user failure).
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, userID, assertion string) (bool, error)
}

// Config tunes the TOTP parameters. Skew and the replay guard TTL are
// deliberately independent knobs.
type Config struct {
	TOTPPeriod time.Duration // code validity window, default 30s
	TOTPDigits int           // default 6
	// TOTPSkew is how many adjacent steps are tolerated each side. Nil takes
	// the default of 1; an explicit 0 restricts matching to the current step.
	TOTPSkew *int
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TOTPPeriod <= 0 {
		c.TOTPPeriod = 30 * time.Second
	}
	if c.TOTPDigits <= 0 {
		c.TOTPDigits = 6
	}
	if c.TOTPSkew == nil {
		skew := 1
		c.TOTPSkew = &skew
	} else if *c.TOTPSkew < 0 {
		skew := 0
		c.TOTPSkew = &skew
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Verifier is the factor decision engine.
type Verifier struct {
	cfg      Config
	replays  *replay.Guard
	passkeys AssertionVerifier
}

// New creates a Verifier. The replay guard is required; the assertion
// verifier may be nil when passkeys are not offered.
func New(cfg Config, replays *replay.Guard, passkeys AssertionVerifier) *Verifier {
	return &Verifier{
		cfg:      cfg.withDefaults(),
		replays:  replays,
		passkeys: passkeys,
	}
}

// Verify runs one factor attempt. The returned error is non-nil only for
// malformed requests or collaborator infrastructure failures; every expected
// condition, success or failure, is expressed in the Outcome. Callers must
// not count an error return as a user failed attempt.
func (v *Verifier) Verify(ctx context.Context, req domain.VerifyRequest) (domain.Outcome, error) {
	if req.UserID == "" {
		return domain.Outcome{}, ErrMissingUserID
	}
	if !req.Factor.Valid() {
		return domain.Outcome{}, fmt.Errorf("%w: %q", ErrUnsupportedFactor, req.Factor)
	}

	var out domain.Outcome
	var err error
	switch req.Factor {
	case domain.FactorTOTP:
		out = v.verifyTOTP(req)
	case domain.FactorBackup:
		out = v.verifyBackup(req)
	case domain.FactorEmail, domain.FactorWhatsApp:
		out = v.verifyOutOfBand(req)
	case domain.FactorPasskey:
		out, err = v.verifyPasskey(ctx, req)
	}
	if err != nil {
		return domain.Outcome{}, err
	}

	return v.finalize(req, out), nil
}

// finalize applies the post-processing common to every factor: audit action
// tags and the remember-device decision.
func (v *Verifier) finalize(req domain.VerifyRequest, out domain.Outcome) domain.Outcome {
	out.Factor = req.Factor

	if !out.OK {
		out.AuditAction = domain.AuditMFAFailed
		out.RememberDevice = false
		if out.AuditDetails == nil {
			out.AuditDetails = map[string]any{}
		}
		out.AuditDetails["method"] = string(req.Factor)
		out.AuditDetails["reason"] = string(out.Reason)
		return out
	}

	if out.UsedBackup {
		out.AuditAction = domain.AuditMFABackupSuccess
	} else {
		out.AuditAction = domain.AuditMFASuccess
	}

	// A platform authenticator is device-bound, so a passkey success is safe
	// to remember regardless of what the client asked for.
	verifierDecided := req.Factor == domain.FactorPasskey
	out.RememberDevice = verifierDecided || req.RememberDeviceRequested

	if out.AuditDetails == nil {
		out.AuditDetails = map[string]any{}
	}
	out.AuditDetails["method"] = string(req.Factor)
	out.Status = http.StatusOK

	return out
}

func failure(reason domain.FailureReason, status int) domain.Outcome {
	return domain.Outcome{Reason: reason, Status: status}
}
