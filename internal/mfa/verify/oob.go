package verify

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
)

// verifyOutOfBand checks an email or WhatsApp code against the expected
// value supplied by the delivery collaborator. Generation and delivery happen
// outside this core; the verifier only compares and reports. Success carries
// no state delta beyond the enrollment side effect applied by the caller.
func (v *Verifier) verifyOutOfBand(req domain.VerifyRequest) domain.Outcome {
	challenge := req.OutOfBand
	if challenge == nil || challenge.CodeFingerprint == "" {
		// No pending challenge to verify against.
		return failure(domain.ReasonNotEnrolled, http.StatusBadRequest)
	}

	if v.cfg.Now().After(challenge.ExpiresAt) {
		return failure(domain.ReasonInvalidOutOfBandCode, http.StatusUnauthorized)
	}

	submitted := cryptox.FingerprintToken(strings.TrimSpace(req.Token))
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.CodeFingerprint)) != 1 {
		return failure(domain.ReasonInvalidOutOfBandCode, http.StatusUnauthorized)
	}

	return domain.Outcome{
		OK:           true,
		AuditDetails: map[string]any{"channel": string(req.Factor)},
	}
}
