package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
)

type trustedDevicesRepo struct {
	db *sql.DB
}

func (r *trustedDevicesRepo) Upsert(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_devices (user_id, device_id, fingerprint_hash, user_agent_hash, ip_prefix, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			fingerprint_hash = excluded.fingerprint_hash,
			user_agent_hash  = excluded.user_agent_hash,
			ip_prefix        = excluded.ip_prefix,
			last_used_at     = excluded.last_used_at`,
		d.UserID, d.DeviceID, d.FingerprintHash, d.UserAgentHash, d.IPPrefix, d.LastUsedAt.UTC())
	return err
}

func (r *trustedDevicesRepo) Find(ctx context.Context, userID string, fingerprintHash string) (domain.TrustedDevice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, device_id, fingerprint_hash, user_agent_hash, ip_prefix, last_used_at, created_at
		FROM trusted_devices WHERE user_id = ? AND fingerprint_hash = ?
		ORDER BY last_used_at DESC LIMIT 1`, userID, fingerprintHash)

	var d domain.TrustedDevice
	err := row.Scan(&d.UserID, &d.DeviceID, &d.FingerprintHash, &d.UserAgentHash,
		&d.IPPrefix, &d.LastUsedAt, &d.CreatedAt)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *trustedDevicesRepo) Touch(ctx context.Context, userID, deviceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE trusted_devices SET last_used_at = ? WHERE user_id = ? AND device_id = ?`,
		at.UTC(), userID, deviceID)
	return err
}

func (r *trustedDevicesRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM trusted_devices WHERE last_used_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
