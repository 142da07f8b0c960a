package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
)

var (
	// ErrAlreadyEnrolled reports a TOTP enrollment attempt for a member who
	// already holds a secret. Re-enrollment requires an explicit reset.
	ErrAlreadyEnrolled = errors.New("service: totp already enrolled")
)

// EnrollmentService provisions TOTP secrets and backup codes. Verification
// of the first code, which activates the enrollment method tag, goes through
// the ordinary challenge flow.
type EnrollmentService struct {
	Store  store.Store
	Issuer string // label shown in authenticator apps
}

// TOTPEnrollment is the provisioning material returned to the member once.
type TOTPEnrollment struct {
	Secret string
	URL    string // otpauth:// URL for QR rendering
}

// EnrollTOTP mints a TOTP secret for the member and stores it. The secret is
// returned exactly once; the member proves possession through Verify.
func (s *EnrollmentService) EnrollTOTP(ctx context.Context, userID, accountName string) (TOTPEnrollment, error) {
	state, err := s.Store.States().Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return TOTPEnrollment{}, fmt.Errorf("load mfa state: %w", err)
	}
	if state.TOTPSecret != "" {
		return TOTPEnrollment{}, ErrAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	state.TOTPSecret = key.Secret()
	state.LastStep = nil
	if err := s.Store.States().Put(ctx, userID, state); err != nil {
		return TOTPEnrollment{}, fmt.Errorf("store totp secret: %w", err)
	}

	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// IssueBackupCodes replaces the member's backup codes with a fresh set and
// returns the plaintext codes. Only the hashes are stored; the codes cannot
// be shown again.
func (s *EnrollmentService) IssueBackupCodes(ctx context.Context, userID string) ([]string, error) {
	state, err := s.Store.States().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mfa state: %w", err)
	}

	codes, err := cryptox.GenerateBackupCodes(cryptox.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	plain := make([]string, len(codes))
	hashes := make([]string, len(codes))
	for i, c := range codes {
		plain[i] = c.Code
		hashes[i] = c.Hash
	}

	state.BackupHashes = hashes
	if err := s.Store.States().Put(ctx, userID, state); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}

	return plain, nil
}
