package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs and bound writer contention
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) States() store.States                 { return &statesRepo{db: s.db} }
func (s *Store) Challenges() store.Challenges         { return &challengesRepo{db: s.db} }
func (s *Store) TrustedDevices() store.TrustedDevices { return &trustedDevicesRepo{db: s.db} }
func (s *Store) Audit() store.Audit                   { return &auditRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapNullInt64Ptr(ni sql.NullInt64) *int64 {
	if ni.Valid {
		val := ni.Int64
		return &val
	}
	return nil
}

func mapOptionalInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

// joinList and splitList serialize string lists into a single space-delimited
// column, the same shape the scopes columns use elsewhere. Backup hashes are
// base64 and never contain spaces.
func joinList(items []string) string {
	return strings.Join(items, " ")
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func joinMethods(methods []domain.Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, " ")
}

func splitMethods(s string) []domain.Method {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil
	}
	methods := make([]domain.Method, len(parts))
	for i, p := range parts {
		methods[i] = domain.Method(p)
	}
	return methods
}
