package verify

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// verifyTOTP checks the submitted code against the candidate steps around
// "now", newest first. A candidate is skipped when it violates step
// monotonicity or the replay guard has already seen it; the code itself is
// compared in constant time. The replay entry is consumed only after a match,
// so a wrong submission never burns a step the member has yet to use.
func (v *Verifier) verifyTOTP(req domain.VerifyRequest) domain.Outcome {
	if req.State.TOTPSecret == "" {
		return failure(domain.ReasonNotEnrolled, http.StatusBadRequest)
	}

	token := strings.TrimSpace(req.Token)
	if len(token) != v.cfg.TOTPDigits || !isDigits(token) {
		return failure(domain.ReasonInvalidCode, http.StatusUnauthorized)
	}

	period := int64(v.cfg.TOTPPeriod / time.Second)
	base := v.cfg.Now().Unix() / period
	skew := *v.cfg.TOTPSkew

	for offset := skew; offset >= -skew; offset-- {
		step := base + int64(offset)
		if step < 0 {
			continue
		}

		// Monotonicity: an already-superseded step is never valid, even if
		// the replay entry for it has expired.
		if req.State.LastStep != nil && step <= *req.State.LastStep {
			continue
		}

		if v.replays.Seen(req.UserID, step) {
			continue
		}

		expected, err := totp.GenerateCodeCustom(req.State.TOTPSecret, time.Unix(step*period, 0), totp.ValidateOpts{
			Period:    uint(period),
			Digits:    otp.Digits(v.cfg.TOTPDigits),
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			// Undecodable secret means the enrollment material is unusable.
			return failure(domain.ReasonNotEnrolled, http.StatusBadRequest)
		}

		if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
			continue
		}

		// Losing the consume race to a concurrent attempt counts as replay.
		if !v.replays.ConsumeIfUnseen(req.UserID, step) {
			return failure(domain.ReasonInvalidCode, http.StatusUnauthorized)
		}

		accepted := step
		return domain.Outcome{
			OK:           true,
			Delta:        domain.StateDelta{NextLastStep: &accepted},
			AuditDetails: map[string]any{"step": accepted},
		}
	}

	return failure(domain.ReasonInvalidCode, http.StatusUnauthorized)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
