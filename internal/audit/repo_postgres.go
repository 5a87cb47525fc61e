package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends audit events to Postgres.
//
// Assumed schema:
//
//	CREATE TABLE audit_events (
//	    id             UUID PRIMARY KEY,
//	    type           TEXT NOT NULL,
//	    actor_user_id  TEXT NOT NULL DEFAULT '',
//	    actor_role     TEXT NOT NULL DEFAULT '',
//	    ip_address     TEXT NOT NULL DEFAULT '',
//	    target_user_id TEXT NOT NULL DEFAULT '',
//	    amount         BIGINT NOT NULL DEFAULT 0,
//	    message        TEXT NOT NULL DEFAULT '',
//	    metadata       TEXT NOT NULL DEFAULT '',
//	    created_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, actor_user_id, actor_role, ip_address,
			target_user_id, amount, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.TargetUserID, e.Amount, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
