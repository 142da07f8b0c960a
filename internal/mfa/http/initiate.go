package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/service"
	"github.com/ikimina/sacco-auth/internal/mfa/verify"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/mfasdk"
	"github.com/ikimina/sacco-auth/pkg/slogx"
)

// InitiateHandler handles POST /v1/mfa/initiate.
type InitiateHandler struct {
	Initiations *service.InitiateService
}

func (h *InitiateHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse initiate request", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	res, err := h.Initiations.Initiate(ctx, service.InitiateInput{
		UserID:      req.UserID,
		Factor:      domain.Factor(req.Factor),
		Destination: req.Destination,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasskeyInitiateUnsupported):
			httpx.WriteError(w, http.StatusNotImplemented, mfasdk.ErrorCodeNotImplemented,
				"Passkey ceremonies are initiated by the platform layer")
		case errors.Is(err, verify.ErrMissingUserID):
			httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest, "user_id is required")
		case errors.Is(err, service.ErrFactorNotInitiable):
			httpx.WriteError(w, http.StatusBadRequest, mfasdk.ErrorCodeInvalidRequest,
				"Factor does not use delivered codes")
		case errors.Is(err, service.ErrNoSender):
			log.Error("initiate requested without a configured sender")
			httpx.WriteError(w, http.StatusServiceUnavailable, mfasdk.ErrorCodeServerError,
				"Code delivery is not available")
		default:
			log.Error("failed to initiate challenge", "user_id", req.UserID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, mfasdk.ErrorCodeServerError,
				"Could not deliver a verification code")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusAccepted, mfasdk.InitiateResponse{
		ChallengeID: res.ChallengeID,
		ExpiresAt:   res.ExpiresAt,
	})
}
