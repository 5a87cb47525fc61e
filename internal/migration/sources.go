package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// PhoneUserSource reads balances from the phone-auth product's user table,
// where the credit column lives on the user row itself.
//
// Assumed legacy schema: phone_users (uid TEXT PRIMARY KEY, credits BIGINT).
type PhoneUserSource struct {
	db *sql.DB
}

func NewPhoneUserSource(db *sql.DB) *PhoneUserSource { return &PhoneUserSource{db: db} }

func (s *PhoneUserSource) Name() string { return "phone_users" }

func (s *PhoneUserSource) Records(ctx context.Context) ([]LegacyRecord, error) {
	return scanRecords(ctx, s.db, s.Name(),
		`SELECT uid, COALESCE(credits, 0) FROM phone_users ORDER BY uid`)
}

// PortalUserSource reads balances from the member-portal product, which keyed
// users by a numeric id and stored credits on a profile row.
//
// Assumed legacy schema: portal_profiles (user_id BIGINT PRIMARY KEY,
// credit_balance BIGINT).
type PortalUserSource struct {
	db *sql.DB
}

func NewPortalUserSource(db *sql.DB) *PortalUserSource { return &PortalUserSource{db: db} }

func (s *PortalUserSource) Name() string { return "portal_profiles" }

func (s *PortalUserSource) Records(ctx context.Context) ([]LegacyRecord, error) {
	return scanRecords(ctx, s.db, s.Name(),
		`SELECT user_id::TEXT, COALESCE(credit_balance, 0) FROM portal_profiles ORDER BY user_id`)
}

func scanRecords(ctx context.Context, db *sql.DB, origin, query string) ([]LegacyRecord, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", origin, err)
	}
	defer rows.Close()

	var out []LegacyRecord
	for rows.Next() {
		rec := LegacyRecord{Origin: origin}
		if err := rows.Scan(&rec.UserID, &rec.Credits); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", origin, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MemorySource is a fixed record list for tests and rehearsals.
type MemorySource struct {
	SourceName string
	Items      []LegacyRecord
}

func (s *MemorySource) Name() string { return s.SourceName }

func (s *MemorySource) Records(ctx context.Context) ([]LegacyRecord, error) {
	out := make([]LegacyRecord, len(s.Items))
	for i, rec := range s.Items {
		if rec.Origin == "" {
			rec.Origin = s.SourceName
		}
		out[i] = rec
	}
	return out, nil
}
