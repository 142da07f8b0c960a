package verify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
)

// verifyPasskey delegates the cryptographic assertion check to the platform
// verifier and maps its answer into the common outcome shape. A collaborator
// error propagates as an error so the caller never counts it against the
// member's failed-attempt budget.
func (v *Verifier) verifyPasskey(ctx context.Context, req domain.VerifyRequest) (domain.Outcome, error) {
	if v.passkeys == nil {
		return domain.Outcome{}, ErrNoAssertionVerifier
	}

	ok, err := v.passkeys.VerifyAssertion(ctx, req.UserID, req.Token)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("passkey assertion verifier: %w", err)
	}
	if !ok {
		return failure(domain.ReasonAssertionFailed, http.StatusUnauthorized), nil
	}

	return domain.Outcome{
		OK:           true,
		AuditDetails: map[string]any{"enrolled": req.State.PasskeyEnrolled},
	}, nil
}
