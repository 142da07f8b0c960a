package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/service"
	"github.com/ikimina/sacco-auth/internal/mfa/sessionx"
	"github.com/ikimina/sacco-auth/internal/mfa/verify"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/mfasdk"
	"github.com/ikimina/sacco-auth/pkg/slogx"
)

// VerifyHandler handles POST /v1/mfa/verify.
type VerifyHandler struct {
	Challenges *service.ChallengeService
}

func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse verify request", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	res, err := h.Challenges.Verify(ctx, service.VerifyInput{
		UserID:         req.UserID,
		Factor:         domain.Factor(req.Factor),
		Token:          req.Token,
		Email:          req.Email,
		ClientIP:       httpx.IPKeyExtractor(r),
		UserAgent:      r.UserAgent(),
		RememberDevice: req.RememberDevice,
	})
	if err != nil {
		switch {
		case errors.Is(err, verify.ErrMissingUserID):
			httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "user_id is required")
		case errors.Is(err, verify.ErrUnsupportedFactor):
			httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "unsupported factor")
		default:
			log.Error("verification could not be decided", "user_id", req.UserID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, mfasdk.ErrorCodeServerError, "Verification unavailable, try again")
		}
		return
	}

	if res.RateLimited {
		writeRateLimited(w, res)
		return
	}

	outcome := res.Outcome
	if !outcome.OK {
		log.Warn("verification rejected",
			"user_id", req.UserID,
			"factor", string(outcome.Factor),
			"reason", string(outcome.Reason),
		)
		httpx.WriteError(w, outcome.Status, string(outcome.Reason), failureDescription(outcome.Reason))
		return
	}

	h.setSessionCookies(w, res)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mfasdk.VerifyResponse{
		Verified:           true,
		Factor:             string(outcome.Factor),
		RememberDevice:     outcome.RememberDevice,
		UsedBackup:         outcome.UsedBackup,
		DeviceID:           res.DeviceID,
		SessionToken:       res.SessionToken,
		TrustedDeviceToken: res.TrustedDeviceToken,
	})
}

func (h *VerifyHandler) setSessionCookies(w http.ResponseWriter, res service.VerifyResult) {
	sessions := h.Challenges.Sessions

	http.SetCookie(w, &http.Cookie{
		Name:     sessionx.SessionCookie,
		Value:    res.SessionToken,
		Path:     "/",
		MaxAge:   int(sessions.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	if res.TrustedDeviceToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionx.TrustedDeviceCookie,
			Value:    res.TrustedDeviceToken,
			Path:     "/",
			MaxAge:   int(sessions.TrustedTTL() / time.Second),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func writeRateLimited(w http.ResponseWriter, res service.VerifyResult) {
	retryAfter := int(time.Until(res.RetryAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	retryAt := res.RetryAt.UTC()
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusTooManyRequests, mfasdk.ErrorResponse{
		Code:        mfasdk.ErrorCodeRateLimited,
		Description: "Too many verification attempts, try again later",
		RetryAt:     &retryAt,
		Scope:       res.RateScope,
	})
}

// failureDescription keeps the human text as coarse as the reason codes so
// responses cannot be mined for which part of a check failed.
func failureDescription(reason domain.FailureReason) string {
	switch reason {
	case domain.ReasonNotEnrolled:
		return "No enrolled factor of this type"
	case domain.ReasonAssertionFailed:
		return "Passkey assertion was rejected"
	default:
		return "Verification failed"
	}
}
