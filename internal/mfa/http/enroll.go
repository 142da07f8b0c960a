package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ikimina/sacco-auth/internal/mfa/service"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/mfasdk"
	"github.com/ikimina/sacco-auth/pkg/slogx"
)

// EnrollHandler handles TOTP enrollment and backup code issuance.
type EnrollHandler struct {
	Enrollments *service.EnrollmentService
	Issuer      string
}

// HandleEnrollTOTP handles POST /v1/mfa/totp/enroll.
func (h *EnrollHandler) HandleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.EnrollTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse enroll request", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "user_id is required")
		return
	}

	enrollment, err := h.Enrollments.EnrollTOTP(ctx, req.UserID, req.AccountName)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyEnrolled) {
			log.Warn("totp already enrolled", "user_id", req.UserID)
			httpx.WriteError(w, http.StatusConflict, mfasdk.ErrorCodeInvalidRequest,
				"TOTP is already enrolled for this member")
			return
		}
		log.Error("failed to enroll totp", "user_id", req.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, mfasdk.ErrorCodeServerError, "Enrollment failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mfasdk.EnrollTOTPResponse{
		Secret: enrollment.Secret,
		URL:    enrollment.URL,
		Issuer: h.Issuer,
	})
}

// HandleIssueBackupCodes handles POST /v1/mfa/backup/issue.
func (h *EnrollHandler) HandleIssueBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.IssueBackupCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse backup issue request", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "user_id is required")
		return
	}

	codes, err := h.Enrollments.IssueBackupCodes(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeNotEnrolled,
				"No MFA enrollment for this member")
			return
		}
		log.Error("failed to issue backup codes", "user_id", req.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, mfasdk.ErrorCodeServerError, "Issuance failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mfasdk.IssueBackupCodesResponse{Codes: codes})
}
