package sqlite

import (
	"context"
	"database/sql"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"time"
)

type challengesRepo struct {
	db *sql.DB
}

func (r *challengesRepo) Upsert(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oob_challenges (id, user_id, factor, code_fingerprint, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, factor) DO UPDATE SET
			id               = excluded.id,
			code_fingerprint = excluded.code_fingerprint,
			expires_at       = excluded.expires_at,
			created_at       = CURRENT_TIMESTAMP`,
		c.ID, c.UserID, string(c.Factor), c.CodeFingerprint, c.ExpiresAt.UTC())
	return err
}

func (r *challengesRepo) Get(ctx context.Context, userID string, factor domain.Factor) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, factor, code_fingerprint, expires_at, created_at
		FROM oob_challenges WHERE user_id = ? AND factor = ?`, userID, string(factor))

	var c domain.Challenge
	var factorStr string
	err := row.Scan(&c.ID, &c.UserID, &factorStr, &c.CodeFingerprint, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.Factor = domain.Factor(factorStr)
	return c, nil
}

func (r *challengesRepo) Delete(ctx context.Context, userID string, factor domain.Factor) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oob_challenges WHERE user_id = ? AND factor = ?`, userID, string(factor))
	return err
}

func (r *challengesRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM oob_challenges WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
