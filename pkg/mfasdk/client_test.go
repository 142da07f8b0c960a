package mfasdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/mfa/verify", r.URL.Path)

		var req VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "member-1", req.UserID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(VerifyResponse{
			Verified:     true,
			Factor:       req.Factor,
			SessionToken: "jwt",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Verify(context.Background(), VerifyRequest{
		UserID: "member-1",
		Factor: "totp",
		Token:  "123456",
	})
	require.NoError(t, err)
	require.True(t, resp.Verified)
	require.Equal(t, "jwt", resp.SessionToken)
}

func TestVerifyReturnsTypedErrors(t *testing.T) {
	retryAt := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		switch req.UserID {
		case "limited":
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Code:    ErrorCodeRateLimited,
				RetryAt: &retryAt,
				Scope:   "user",
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Code:        ErrorCodeInvalidCode,
				Description: "Verification failed",
			})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	t.Run("verification failure", func(t *testing.T) {
		_, err := client.Verify(context.Background(), VerifyRequest{UserID: "member-1", Factor: "totp", Token: "000000"})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, ErrorCodeInvalidCode, apiErr.Code)
	})

	t.Run("rate limit", func(t *testing.T) {
		_, err := client.Verify(context.Background(), VerifyRequest{UserID: "limited", Factor: "totp", Token: "000000"})

		var rlErr *RateLimitError
		require.ErrorAs(t, err, &rlErr)
		require.Equal(t, retryAt, rlErr.RetryAt)
		require.Equal(t, "user", rlErr.Scope)
	})
}

func TestInitiateExpectsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/mfa/initiate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(InitiateResponse{ChallengeID: "chal-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Initiate(context.Background(), InitiateRequest{
		UserID:      "member-1",
		Factor:      "email",
		Destination: "member@example.coop",
	})
	require.NoError(t, err)
	require.Equal(t, "chal-1", resp.ChallengeID)
}

func TestHealthEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{Status: "degraded"})
			return
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Uptime: "1m"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	live, err := client.Livez(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.Readyz(context.Background())
	require.Error(t, err)
	require.Equal(t, "degraded", ready.Status)
}
