package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/internal/mfa/store/drivers/sqlite"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
)

type capturingSender struct {
	factor      domain.Factor
	destination string
	code        string
	err         error
}

func (s *capturingSender) SendCode(_ context.Context, factor domain.Factor, _, destination, code string) error {
	s.factor = factor
	s.destination = destination
	s.code = code
	return s.err
}

func newInitiateService(t *testing.T, sender Sender) (*InitiateService, *sqlite.Store) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	return &InitiateService{
		Store:  st,
		Sender: sender,
		Logger: testLogger(),
		Now:    func() time.Time { return testNow },
	}, st
}

func TestInitiateEmailChallenge(t *testing.T) {
	sender := &capturingSender{}
	svc, st := newInitiateService(t, sender)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{
		UserID:      "member-1",
		Factor:      domain.FactorEmail,
		Destination: "member@example.coop",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ChallengeID)
	require.Equal(t, testNow.Add(DefaultChallengeTTL), res.ExpiresAt)

	require.Equal(t, domain.FactorEmail, sender.factor)
	require.Equal(t, "member@example.coop", sender.destination)
	require.Len(t, sender.code, 6)

	t.Run("stored fingerprint matches the delivered code", func(t *testing.T) {
		c, err := st.Challenges().Get(ctx, "member-1", domain.FactorEmail)
		require.NoError(t, err)
		require.Equal(t, cryptox.FingerprintToken(sender.code), c.CodeFingerprint)
	})

	t.Run("re-initiating replaces the pending code", func(t *testing.T) {
		first := sender.code
		_, err := svc.Initiate(ctx, InitiateInput{
			UserID:      "member-1",
			Factor:      domain.FactorEmail,
			Destination: "member@example.coop",
		})
		require.NoError(t, err)
		require.NotEqual(t, first, sender.code)

		c, err := st.Challenges().Get(ctx, "member-1", domain.FactorEmail)
		require.NoError(t, err)
		require.Equal(t, cryptox.FingerprintToken(sender.code), c.CodeFingerprint)
	})
}

func TestInitiateDeliveryFailureWithdrawsChallenge(t *testing.T) {
	sender := &capturingSender{err: errors.New("smtp down")}
	svc, st := newInitiateService(t, sender)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, InitiateInput{
		UserID:      "member-1",
		Factor:      domain.FactorWhatsApp,
		Destination: "+254700000000",
	})
	require.Error(t, err)

	_, err = st.Challenges().Get(ctx, "member-1", domain.FactorWhatsApp)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInitiateRejectsWrongFactors(t *testing.T) {
	svc, _ := newInitiateService(t, &capturingSender{})
	ctx := context.Background()

	_, err := svc.Initiate(ctx, InitiateInput{UserID: "member-1", Factor: domain.FactorPasskey})
	require.ErrorIs(t, err, ErrPasskeyInitiateUnsupported)

	_, err = svc.Initiate(ctx, InitiateInput{UserID: "member-1", Factor: domain.FactorTOTP})
	require.ErrorIs(t, err, ErrFactorNotInitiable)

	_, err = svc.Initiate(ctx, InitiateInput{Factor: domain.FactorEmail})
	require.Error(t, err)
}

func TestInitiateWithoutSender(t *testing.T) {
	svc, _ := newInitiateService(t, nil)

	_, err := svc.Initiate(context.Background(), InitiateInput{
		UserID: "member-1",
		Factor: domain.FactorEmail,
	})
	require.ErrorIs(t, err, ErrNoSender)
}
