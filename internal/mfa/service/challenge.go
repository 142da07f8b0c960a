package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/ratelimit"
	"github.com/ikimina/sacco-auth/internal/mfa/sessionx"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/internal/mfa/verify"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/idx"
)

// Policy is a fixed attempt budget over a rolling window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Default budgets. The per-address budget is looser than the per-member one
// so a shared branch network does not lock out every member at once.
var (
	DefaultUserPolicy = Policy{MaxAttempts: 5, Window: 5 * time.Minute}
	DefaultIPPolicy   = Policy{MaxAttempts: 10, Window: 5 * time.Minute}
)

const (
	// RateScopeUser marks a rejection caused by the per-member budget.
	RateScopeUser = "user"
	// RateScopeIP marks a rejection caused by the per-address budget.
	RateScopeIP = "ip"
)

// ChallengeService orchestrates a verification attempt end to end: rate
// limiting, state loading, factor verification, persistence of the result,
// audit logging, and session issuance.
type ChallengeService struct {
	Store    store.Store
	Verifier *verify.Verifier
	Limits   *ratelimit.Limiter
	Sessions *sessionx.Manager
	Logger   *slog.Logger

	UserPolicy Policy
	IPPolicy   Policy

	Now func() time.Time
}

// VerifyInput carries one submitted challenge response plus the request
// metadata needed for throttling and device binding.
type VerifyInput struct {
	UserID         string
	Factor         domain.Factor
	Token          string
	Email          string
	ClientIP       string
	UserAgent      string
	RememberDevice bool
}

// VerifyResult is the terminal outcome of an attempt. Exactly one of
// RateLimited or Outcome-carrying paths applies.
type VerifyResult struct {
	RateLimited bool
	RateScope   string
	RetryAt     time.Time

	Outcome domain.Outcome

	SessionToken       string
	TrustedDeviceToken string
	DeviceID           string
}

func (s *ChallengeService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ChallengeService) userPolicy() Policy {
	if s.UserPolicy.MaxAttempts > 0 {
		return s.UserPolicy
	}
	return DefaultUserPolicy
}

func (s *ChallengeService) ipPolicy() Policy {
	if s.IPPolicy.MaxAttempts > 0 {
		return s.IPPolicy
	}
	return DefaultIPPolicy
}

// Verify runs one verification attempt. A returned error means the attempt
// could not be decided (storage or collaborator failure); it is never a
// user failure and must not consume the member's attempt budget.
func (s *ChallengeService) Verify(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	if in.UserID == "" {
		return VerifyResult{}, verify.ErrMissingUserID
	}
	if !in.Factor.Valid() {
		return VerifyResult{}, verify.ErrUnsupportedFactor
	}

	if res, limited := s.checkBudgets(ctx, in); limited {
		return res, nil
	}

	state, err := s.loadState(ctx, in.UserID)
	if err != nil {
		return VerifyResult{}, err
	}

	var challenge *domain.OutOfBandChallenge
	if in.Factor.OutOfBand() {
		challenge, err = s.loadChallenge(ctx, in.UserID, in.Factor)
		if err != nil {
			return VerifyResult{}, err
		}
	}

	outcome, err := s.Verifier.Verify(ctx, domain.VerifyRequest{
		Factor:                  in.Factor,
		Token:                   in.Token,
		UserID:                  in.UserID,
		Email:                   in.Email,
		State:                   state,
		OutOfBand:               challenge,
		RememberDeviceRequested: in.RememberDevice,
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if !outcome.OK {
		s.recordFailure(ctx, in.UserID, outcome)
		return VerifyResult{Outcome: outcome}, nil
	}

	res, err := s.recordSuccess(ctx, in, outcome)
	if err != nil {
		return VerifyResult{}, err
	}
	return res, nil
}

// checkBudgets consumes one hit from each budget. The per-member budget is
// checked first so its tighter limit reports before the address-wide one.
func (s *ChallengeService) checkBudgets(ctx context.Context, in VerifyInput) (VerifyResult, bool) {
	user := s.userPolicy()
	if d := s.Limits.CheckAndConsume("mfa:"+in.UserID, user.MaxAttempts, user.Window); !d.Allowed {
		s.auditRateLimited(ctx, in, RateScopeUser, d.RetryAt)
		return VerifyResult{RateLimited: true, RateScope: RateScopeUser, RetryAt: d.RetryAt}, true
	}

	if in.ClientIP != "" {
		ip := s.ipPolicy()
		if d := s.Limits.CheckAndConsume("mfa-ip:"+httpx.HashIP(in.ClientIP), ip.MaxAttempts, ip.Window); !d.Allowed {
			s.auditRateLimited(ctx, in, RateScopeIP, d.RetryAt)
			return VerifyResult{RateLimited: true, RateScope: RateScopeIP, RetryAt: d.RetryAt}, true
		}
	}

	return VerifyResult{}, false
}

// loadState fetches the member's MFA state. An unknown member verifies
// against the zero state, which every factor reports as not enrolled.
func (s *ChallengeService) loadState(ctx context.Context, userID string) (domain.MFAState, error) {
	state, err := s.Store.States().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.MFAState{}, nil
	}
	if err != nil {
		return domain.MFAState{}, fmt.Errorf("load mfa state: %w", err)
	}
	return state, nil
}

func (s *ChallengeService) loadChallenge(ctx context.Context, userID string, factor domain.Factor) (*domain.OutOfBandChallenge, error) {
	c, err := s.Store.Challenges().Get(ctx, userID, factor)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load out-of-band challenge: %w", err)
	}
	return &domain.OutOfBandChallenge{
		CodeFingerprint: c.CodeFingerprint,
		ExpiresAt:       c.ExpiresAt,
	}, nil
}

// recordFailure bumps the failure counter and writes the audit row. Both
// writes are best effort; the outcome already carries the rejection.
func (s *ChallengeService) recordFailure(ctx context.Context, userID string, outcome domain.Outcome) {
	if _, err := s.Store.States().RecordFailure(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.Logger.Error("failed to record verification failure", "error", err, "user_id", userID)
	}
	s.audit(ctx, userID, outcome.AuditAction, outcome.AuditDetails)
}

func (s *ChallengeService) recordSuccess(ctx context.Context, in VerifyInput, outcome domain.Outcome) (VerifyResult, error) {
	now := s.now()

	var methods []domain.Method
	if m, ok := in.Factor.EnrollmentMethod(); ok {
		methods = append(methods, m)
	}

	if err := s.Store.States().RecordSuccess(ctx, in.UserID, outcome.Delta, methods, now); err != nil {
		return VerifyResult{}, fmt.Errorf("record verification success: %w", err)
	}
	if in.Factor == domain.FactorPasskey {
		if err := s.Store.States().SetPasskeyEnrolled(ctx, in.UserID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.Logger.Error("failed to mark passkey enrollment", "error", err, "user_id", in.UserID)
		}
	}

	// A delivered code is single use; drop it once it verified.
	if in.Factor.OutOfBand() {
		if err := s.Store.Challenges().Delete(ctx, in.UserID, in.Factor); err != nil {
			s.Logger.Error("failed to consume out-of-band challenge", "error", err, "user_id", in.UserID)
		}
	}

	s.audit(ctx, in.UserID, outcome.AuditAction, outcome.AuditDetails)

	res := VerifyResult{Outcome: outcome}

	session, err := s.Sessions.MintSessionToken(in.UserID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("mint session token: %w", err)
	}
	res.SessionToken = session

	if outcome.RememberDevice {
		deviceID, trusted, err := s.registerTrustedDevice(ctx, in, now)
		if err != nil {
			// Losing device trust is not worth failing a verified attempt.
			s.Logger.Error("failed to register trusted device", "error", err, "user_id", in.UserID)
		} else {
			res.DeviceID = deviceID
			res.TrustedDeviceToken = trusted
		}
	}

	return res, nil
}

func (s *ChallengeService) registerTrustedDevice(ctx context.Context, in VerifyInput, now time.Time) (string, string, error) {
	deviceID := uuid.NewString()
	uaHash := sessionx.HashUserAgent(in.UserAgent)
	ipPrefix := sessionx.DeriveIPPrefix(in.ClientIP)

	device := domain.TrustedDevice{
		UserID:          in.UserID,
		DeviceID:        deviceID,
		FingerprintHash: sessionx.DeviceFingerprint(in.UserID, uaHash, ipPrefix),
		UserAgentHash:   uaHash,
		IPPrefix:        ipPrefix,
		LastUsedAt:      now,
		CreatedAt:       now,
	}
	if err := s.Store.TrustedDevices().Upsert(ctx, device); err != nil {
		return "", "", fmt.Errorf("store trusted device: %w", err)
	}

	token, err := s.Sessions.MintTrustedDeviceToken(in.UserID, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("mint trusted device token: %w", err)
	}
	return deviceID, token, nil
}

// CheckTrustedDevice reports whether a presented trusted-device token still
// names a known device whose fingerprint matches the current request. A
// match refreshes the device's last-used time.
func (s *ChallengeService) CheckTrustedDevice(ctx context.Context, token, userAgent, clientIP string) (string, bool) {
	userID, deviceID, err := s.Sessions.CheckTrustedDeviceToken(token)
	if err != nil {
		return "", false
	}

	uaHash := sessionx.HashUserAgent(userAgent)
	ipPrefix := sessionx.DeriveIPPrefix(clientIP)
	fingerprint := sessionx.DeviceFingerprint(userID, uaHash, ipPrefix)

	device, err := s.Store.TrustedDevices().Find(ctx, userID, fingerprint)
	if err != nil {
		return "", false
	}
	if device.DeviceID != deviceID {
		return "", false
	}

	if err := s.Store.TrustedDevices().Touch(ctx, userID, deviceID, s.now()); err != nil {
		s.Logger.Error("failed to touch trusted device", "error", err, "user_id", userID)
	}
	return userID, true
}

func (s *ChallengeService) auditRateLimited(ctx context.Context, in VerifyInput, scope string, retryAt time.Time) {
	s.audit(ctx, in.UserID, domain.AuditMFARateLimited, map[string]any{
		"scope":    scope,
		"method":   string(in.Factor),
		"retry_at": retryAt.UTC().Format(time.RFC3339),
	})
}

// audit writes one audit row. Audit failures are logged, never surfaced:
// a member must not be locked out because the audit table is unhappy.
func (s *ChallengeService) audit(ctx context.Context, userID, action string, details map[string]any) {
	if action == "" {
		return
	}
	entry := domain.AuditEntry{
		ID:        idx.New().String(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: s.now(),
	}
	if err := s.Store.Audit().Append(ctx, entry); err != nil {
		s.Logger.Error("failed to append audit entry", "error", err, "action", action, "user_id", userID)
	}
}
