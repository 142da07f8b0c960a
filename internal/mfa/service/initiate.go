package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/internal/mfa/verify"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
	"github.com/ikimina/sacco-auth/pkg/idx"
)

const (
	// oobCodeDigits is the length of a delivered verification code.
	oobCodeDigits = 6
	// DefaultChallengeTTL is how long a delivered code stays redeemable.
	DefaultChallengeTTL = 5 * time.Minute
)

var (
	// ErrFactorNotInitiable reports an initiation request for a factor that
	// has no server-delivered code (totp, backup).
	ErrFactorNotInitiable = errors.New("service: factor does not use delivered codes")
	// ErrPasskeyInitiateUnsupported reports a passkey ceremony request;
	// assertion options are produced by the platform layer, not here.
	ErrPasskeyInitiateUnsupported = errors.New("service: passkey ceremonies are not initiated here")
	// ErrNoSender reports an out-of-band initiation without a configured
	// delivery channel.
	ErrNoSender = errors.New("service: no code sender configured")
)

// Sender delivers a verification code over an out-of-band channel. An error
// means delivery could not be attempted or confirmed; the challenge is then
// withdrawn so an undeliverable code never sits pending.
type Sender interface {
	SendCode(ctx context.Context, factor domain.Factor, userID, destination, code string) error
}

// InitiateService creates and delivers out-of-band challenges.
type InitiateService struct {
	Store  store.Store
	Sender Sender
	Logger *slog.Logger

	ChallengeTTL time.Duration
	Now          func() time.Time
}

// InitiateInput names the member, channel, and delivery destination.
type InitiateInput struct {
	UserID      string
	Factor      domain.Factor
	Destination string // email address or phone number, per factor
}

// InitiateResult reports the pending challenge. The code itself is only
// ever handed to the Sender.
type InitiateResult struct {
	ChallengeID string
	ExpiresAt   time.Time
}

func (s *InitiateService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *InitiateService) ttl() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

// Initiate mints a fresh code for the factor's channel, persists its
// fingerprint, and hands the code to the sender. Re-initiating replaces any
// pending challenge for the same member and factor.
func (s *InitiateService) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	switch {
	case in.UserID == "":
		return InitiateResult{}, verify.ErrMissingUserID
	case in.Factor == domain.FactorPasskey:
		return InitiateResult{}, ErrPasskeyInitiateUnsupported
	case !in.Factor.OutOfBand():
		return InitiateResult{}, ErrFactorNotInitiable
	case s.Sender == nil:
		return InitiateResult{}, ErrNoSender
	}

	code, err := cryptox.GenerateNumericCode(oobCodeDigits)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("generate verification code: %w", err)
	}

	now := s.now()
	challenge := domain.Challenge{
		ID:              idx.New().String(),
		UserID:          in.UserID,
		Factor:          in.Factor,
		CodeFingerprint: cryptox.FingerprintToken(code),
		ExpiresAt:       now.Add(s.ttl()),
		CreatedAt:       now,
	}
	if err := s.Store.Challenges().Upsert(ctx, challenge); err != nil {
		return InitiateResult{}, fmt.Errorf("store challenge: %w", err)
	}

	if err := s.Sender.SendCode(ctx, in.Factor, in.UserID, in.Destination, code); err != nil {
		if delErr := s.Store.Challenges().Delete(ctx, in.UserID, in.Factor); delErr != nil {
			s.Logger.Error("failed to withdraw undelivered challenge", "error", delErr, "user_id", in.UserID)
		}
		return InitiateResult{}, fmt.Errorf("deliver verification code: %w", err)
	}

	return InitiateResult{ChallengeID: challenge.ID, ExpiresAt: challenge.ExpiresAt}, nil
}
