package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ikimina/sacco-auth/pkg/mfasdk"
)

type allowAllAssertions struct{}

func (allowAllAssertions) VerifyAssertion(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SessionSecret:       "session-secret",
		TrustedDeviceSecret: "trusted-secret",
		DatabaseFile:        filepath.Join(dir, "mfa.db"),
		PepperFile:          filepath.Join(dir, "pepper"),
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
	}
}

func TestNewWiresAssertionVerifier(t *testing.T) {
	application, err := New(testConfig(t), nil, allowAllAssertions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })

	// A passkey attempt for a member with no stored state: the platform
	// verifier accepts the assertion and first use enrolls the method.
	body, err := json.Marshal(mfasdk.VerifyRequest{
		UserID: "member-1",
		Factor: "passkey",
		Token:  "assertion-blob",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/mfa/verify", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.9:52100"
	rec := httptest.NewRecorder()
	application.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp mfasdk.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Verified)
	require.True(t, resp.RememberDevice, "passkey success is device bound")
	require.NotEmpty(t, resp.TrustedDeviceToken)

	state, err := application.db.States().Get(context.Background(), "member-1")
	require.NoError(t, err)
	require.True(t, state.PasskeyEnrolled)
}

func TestNewWithoutAssertionVerifier(t *testing.T) {
	application, err := New(testConfig(t), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })

	body, err := json.Marshal(mfasdk.VerifyRequest{
		UserID: "member-1",
		Factor: "passkey",
		Token:  "assertion-blob",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/mfa/verify", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.9:52100"
	rec := httptest.NewRecorder()
	application.router.ServeHTTP(rec, req)

	// Passkeys not offered is a service configuration gap, not a user failure.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
