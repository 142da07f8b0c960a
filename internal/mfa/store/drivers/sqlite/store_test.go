package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestStatesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.States().Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	last := int64(12345)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	state := domain.MFAState{
		TOTPSecret:    "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
		LastStep:      &last,
		BackupHashes:  []string{"salt1$hash1", "salt2$hash2"},
		FailedCount:   2,
		Methods:       []domain.Method{domain.MethodTOTP},
		LastSuccessAt: &at,
	}

	require.NoError(t, s.States().Put(ctx, "user-1", state))

	got, err := s.States().Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, state.TOTPSecret, got.TOTPSecret)
	require.NotNil(t, got.LastStep)
	require.Equal(t, last, *got.LastStep)
	require.Equal(t, state.BackupHashes, got.BackupHashes)
	require.Equal(t, 2, got.FailedCount)
	require.Equal(t, []domain.Method{domain.MethodTOTP}, got.Methods)
	require.False(t, got.PasskeyEnrolled)
}

func TestStatesRecordSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.States().Put(ctx, "user-1", domain.MFAState{
		TOTPSecret:   "SECRET",
		BackupHashes: []string{"a$1", "b$2"},
		FailedCount:  3,
	}))

	next := int64(999)
	at := time.Now().UTC().Truncate(time.Second)
	err := s.States().RecordSuccess(ctx, "user-1",
		domain.StateDelta{NextLastStep: &next},
		[]domain.Method{domain.MethodTOTP}, at)
	require.NoError(t, err)

	got, err := s.States().Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, next, *got.LastStep)
	require.Zero(t, got.FailedCount)
	require.Equal(t, []string{"a$1", "b$2"}, got.BackupHashes, "nil delta leaves hashes alone")
	require.True(t, got.HasMethod(domain.MethodTOTP))

	t.Run("missing row enrolls from the zero state", func(t *testing.T) {
		err := s.States().RecordSuccess(ctx, "first-timer",
			domain.StateDelta{}, []domain.Method{domain.MethodEmail}, at)
		require.NoError(t, err)

		got, err := s.States().Get(ctx, "first-timer")
		require.NoError(t, err)
		require.True(t, got.HasMethod(domain.MethodEmail))
		require.Empty(t, got.TOTPSecret)
		require.NotNil(t, got.LastSuccessAt)
	})

	t.Run("backup delta replaces the hash list", func(t *testing.T) {
		err := s.States().RecordSuccess(ctx, "user-1",
			domain.StateDelta{NextBackupHashes: []string{"b$2"}}, nil, at)
		require.NoError(t, err)

		got, err := s.States().Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, []string{"b$2"}, got.BackupHashes)
	})

	t.Run("empty delta list clears all hashes", func(t *testing.T) {
		err := s.States().RecordSuccess(ctx, "user-1",
			domain.StateDelta{NextBackupHashes: []string{}}, nil, at)
		require.NoError(t, err)

		got, err := s.States().Get(ctx, "user-1")
		require.NoError(t, err)
		require.Empty(t, got.BackupHashes)
	})
}

func TestStatesRecordFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.States().Put(ctx, "user-1", domain.MFAState{TOTPSecret: "SECRET"}))

	count, err := s.States().RecordFailure(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = s.States().RecordFailure(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = s.States().RecordFailure(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPasskeyEnrolled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.States().Put(ctx, "user-1", domain.MFAState{}))
	require.NoError(t, s.States().SetPasskeyEnrolled(ctx, "user-1"))

	got, err := s.States().Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, got.PasskeyEnrolled)

	require.ErrorIs(t, s.States().SetPasskeyEnrolled(ctx, "missing"), store.ErrNotFound)
}

func TestChallenges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Challenge{
		ID:              "chal-1",
		UserID:          "user-1",
		Factor:          domain.FactorEmail,
		CodeFingerprint: "fp-1",
		ExpiresAt:       time.Now().Add(5 * time.Minute).UTC(),
	}
	require.NoError(t, s.Challenges().Upsert(ctx, c))

	got, err := s.Challenges().Get(ctx, "user-1", domain.FactorEmail)
	require.NoError(t, err)
	require.Equal(t, "fp-1", got.CodeFingerprint)

	t.Run("upsert replaces the pending challenge", func(t *testing.T) {
		c.ID = "chal-2"
		c.CodeFingerprint = "fp-2"
		require.NoError(t, s.Challenges().Upsert(ctx, c))

		got, err := s.Challenges().Get(ctx, "user-1", domain.FactorEmail)
		require.NoError(t, err)
		require.Equal(t, "fp-2", got.CodeFingerprint)
	})

	t.Run("factors are independent", func(t *testing.T) {
		_, err := s.Challenges().Get(ctx, "user-1", domain.FactorWhatsApp)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete consumes", func(t *testing.T) {
		require.NoError(t, s.Challenges().Delete(ctx, "user-1", domain.FactorEmail))
		_, err := s.Challenges().Get(ctx, "user-1", domain.FactorEmail)
		require.ErrorIs(t, err, store.ErrNotFound)

		// Deleting again is not an error.
		require.NoError(t, s.Challenges().Delete(ctx, "user-1", domain.FactorEmail))
	})

	t.Run("expired rows get reaped", func(t *testing.T) {
		expired := domain.Challenge{
			ID:              "chal-3",
			UserID:          "user-2",
			Factor:          domain.FactorWhatsApp,
			CodeFingerprint: "fp-3",
			ExpiresAt:       time.Now().Add(-time.Minute).UTC(),
		}
		require.NoError(t, s.Challenges().Upsert(ctx, expired))

		removed, err := s.Challenges().DeleteExpired(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.Equal(t, 1, removed)
	})
}

func TestTrustedDevices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	d := domain.TrustedDevice{
		UserID:          "user-1",
		DeviceID:        "device-1",
		FingerprintHash: "fp-abc",
		UserAgentHash:   "ua-abc",
		IPPrefix:        "203.0",
		LastUsedAt:      now,
	}
	require.NoError(t, s.TrustedDevices().Upsert(ctx, d))

	got, err := s.TrustedDevices().Find(ctx, "user-1", "fp-abc")
	require.NoError(t, err)
	require.Equal(t, "device-1", got.DeviceID)

	_, err = s.TrustedDevices().Find(ctx, "user-1", "fp-other")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("touch bumps last used", func(t *testing.T) {
		later := now.Add(time.Hour)
		require.NoError(t, s.TrustedDevices().Touch(ctx, "user-1", "device-1", later))

		got, err := s.TrustedDevices().Find(ctx, "user-1", "fp-abc")
		require.NoError(t, err)
		require.True(t, got.LastUsedAt.After(now))
	})

	t.Run("stale devices reaped", func(t *testing.T) {
		removed, err := s.TrustedDevices().DeleteStale(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, 1, removed)
	})
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{domain.AuditMFAFailed, domain.AuditMFASuccess} {
		require.NoError(t, s.Audit().Append(ctx, domain.AuditEntry{
			ID:        string(rune('a' + i)),
			UserID:    "user-1",
			Action:    action,
			Details:   map[string]any{"method": "totp"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Audit().ListRecent(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.AuditMFASuccess, entries[0].Action, "newest first")
	require.Equal(t, "totp", entries[0].Details["method"])

	removed, err := s.Audit().DeleteOlderThan(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
