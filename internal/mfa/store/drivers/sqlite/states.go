package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
)

type statesRepo struct {
	db *sql.DB
}

func (r *statesRepo) Get(ctx context.Context, userID string) (domain.MFAState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT totp_secret, last_step, backup_hashes, failed_count, methods, passkey_enrolled, last_success_at
		FROM mfa_states WHERE user_id = ?`, userID)

	var (
		state         domain.MFAState
		lastStep      sql.NullInt64
		backupHashes  string
		methods       string
		lastSuccessAt sql.NullTime
	)
	err := row.Scan(&state.TOTPSecret, &lastStep, &backupHashes, &state.FailedCount,
		&methods, &state.PasskeyEnrolled, &lastSuccessAt)
	if err != nil {
		return domain.MFAState{}, mapNotFound(err)
	}

	state.LastStep = mapNullInt64Ptr(lastStep)
	state.BackupHashes = splitList(backupHashes)
	state.Methods = splitMethods(methods)
	state.LastSuccessAt = mapNullTimePtr(lastSuccessAt)
	return state, nil
}

func (r *statesRepo) Put(ctx context.Context, userID string, state domain.MFAState) error {
	var lastSuccess sql.NullTime
	if state.LastSuccessAt != nil {
		lastSuccess = sql.NullTime{Time: *state.LastSuccessAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_states (user_id, totp_secret, last_step, backup_hashes, failed_count, methods, passkey_enrolled, last_success_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			totp_secret      = excluded.totp_secret,
			last_step        = excluded.last_step,
			backup_hashes    = excluded.backup_hashes,
			failed_count     = excluded.failed_count,
			methods          = excluded.methods,
			passkey_enrolled = excluded.passkey_enrolled,
			last_success_at  = excluded.last_success_at,
			updated_at       = CURRENT_TIMESTAMP`,
		userID, state.TOTPSecret, mapOptionalInt64(state.LastStep), joinList(state.BackupHashes),
		state.FailedCount, joinMethods(state.Methods), state.PasskeyEnrolled, lastSuccess)
	return err
}

func (r *statesRepo) RecordSuccess(ctx context.Context, userID string, delta domain.StateDelta, methods []domain.Method, at time.Time) error {
	// Read-modify-write; the service serializes attempts per user so this
	// needs no SQL-level merge gymnastics. A missing row is the zero state:
	// enrollment is a side effect of the first successful verification.
	state, err := r.Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if delta.NextLastStep != nil {
		state.LastStep = delta.NextLastStep
	}
	if delta.NextBackupHashes != nil {
		state.BackupHashes = delta.NextBackupHashes
	}
	for _, m := range methods {
		if !state.HasMethod(m) {
			state.Methods = append(state.Methods, m)
		}
	}
	state.FailedCount = 0
	state.LastSuccessAt = &at

	return r.Put(ctx, userID, state)
}

func (r *statesRepo) RecordFailure(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_states SET failed_count = failed_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, mapNotFound(sql.ErrNoRows)
	}

	var count int
	err = r.db.QueryRowContext(ctx, `SELECT failed_count FROM mfa_states WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return count, nil
}

func (r *statesRepo) SetPasskeyEnrolled(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_states SET passkey_enrolled = 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
