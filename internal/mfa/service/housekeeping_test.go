package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/ratelimit"
	"github.com/ikimina/sacco-auth/internal/mfa/replay"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/internal/mfa/store/drivers/sqlite"
)

func TestHousekeepingSweep(t *testing.T) {
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.Challenges().Upsert(ctx, domain.Challenge{
		ID:              "expired",
		UserID:          "member-1",
		Factor:          domain.FactorEmail,
		CodeFingerprint: "fp",
		ExpiresAt:       now.Add(-time.Minute),
	}))
	require.NoError(t, st.Challenges().Upsert(ctx, domain.Challenge{
		ID:              "live",
		UserID:          "member-2",
		Factor:          domain.FactorEmail,
		CodeFingerprint: "fp",
		ExpiresAt:       now.Add(time.Hour),
	}))

	require.NoError(t, st.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		UserID:          "member-1",
		DeviceID:        "stale",
		FingerprintHash: "fp-stale",
		LastUsedAt:      now.Add(-60 * 24 * time.Hour),
	}))

	require.NoError(t, st.Audit().Append(ctx, domain.AuditEntry{
		ID:        "old",
		UserID:    "member-1",
		Action:    domain.AuditMFAFailed,
		CreatedAt: now.Add(-120 * 24 * time.Hour),
	}))

	svc := NewHousekeepingService(st, replay.New(replay.DefaultTTL), ratelimit.New(), testLogger(), time.Hour)
	svc.Sweep()

	_, err = st.Challenges().Get(ctx, "member-1", domain.FactorEmail)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Challenges().Get(ctx, "member-2", domain.FactorEmail)
	require.NoError(t, err, "live challenge survives")

	_, err = st.TrustedDevices().Find(ctx, "member-1", "fp-stale")
	require.ErrorIs(t, err, store.ErrNotFound)

	entries, err := st.Audit().ListRecent(ctx, "member-1", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHousekeepingStartStop(t *testing.T) {
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	svc := NewHousekeepingService(st, nil, nil, testLogger(), time.Hour)
	svc.Start()
	svc.Stop()
}
