package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
)

type auditRepo struct {
	db *sql.DB
}

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	blob, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Action, string(blob), e.CreatedAt.UTC())
	return err
}

func (r *auditRepo) ListRecent(ctx context.Context, userID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, created_at
		FROM audit_log WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var details string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *auditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
