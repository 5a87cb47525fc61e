package charge

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepo persists charges in Postgres.
//
// Assumed schema:
//
//	CREATE TABLE charges (
//	    id                    UUID PRIMARY KEY,
//	    user_id               TEXT NOT NULL,
//	    requested_amount      BIGINT NOT NULL,
//	    credit_amount         BIGINT NOT NULL,
//	    gateway_intent_id     TEXT NOT NULL UNIQUE,
//	    gateway_client_secret TEXT NOT NULL DEFAULT '',
//	    status                TEXT NOT NULL DEFAULT 'pending',
//	    error_message         TEXT NOT NULL DEFAULT '',
//	    created_at            TIMESTAMPTZ NOT NULL,
//	    updated_at            TIMESTAMPTZ NOT NULL,
//	    completed_at          TIMESTAMPTZ
//	);
//	CREATE INDEX idx_charges_user_created ON charges (user_id, created_at DESC);
//	CREATE INDEX idx_charges_pending ON charges (created_at) WHERE status = 'pending';
//
//	CREATE TABLE charge_options (
//	    id            TEXT PRIMARY KEY,
//	    name          TEXT NOT NULL,
//	    description   TEXT NOT NULL DEFAULT '',
//	    price         BIGINT NOT NULL,
//	    credits       BIGINT NOT NULL,
//	    bonus_credits BIGINT NOT NULL DEFAULT 0,
//	    display_order INT NOT NULL DEFAULT 0,
//	    popular       BOOLEAN NOT NULL DEFAULT FALSE,
//	    active        BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const chargeColumns = `id, user_id, requested_amount, credit_amount, gateway_intent_id,
	gateway_client_secret, status, error_message, created_at, updated_at, completed_at`

func (r *PostgresRepo) Create(ctx context.Context, c Charge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO charges (id, user_id, requested_amount, credit_amount, gateway_intent_id,
			gateway_client_secret, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.UserID, c.RequestedAmount, c.CreditAmount, c.GatewayIntentID,
		c.GatewayClientSecret, c.Status, c.ErrorMessage, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Charge, bool, error) {
	return r.getOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE id = $1`, id)
}

func (r *PostgresRepo) GetByIntentID(ctx context.Context, intentID string) (Charge, bool, error) {
	return r.getOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE gateway_intent_id = $1`, intentID)
}

func (r *PostgresRepo) FindRecentPending(ctx context.Context, userID string, requestedAmount, creditAmount int64, since time.Time) (Charge, bool, error) {
	return r.getOne(ctx, `
		SELECT `+chargeColumns+`
		FROM charges
		WHERE user_id = $1
		  AND status = 'pending'
		  AND requested_amount = $2
		  AND credit_amount = $3
		  AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, requestedAmount, creditAmount, since)
}

// Finalize is the compare-and-swap guarding against duplicate webhook
// delivery and confirm/webhook races. RowsAffected == 0 means somebody else
// already moved the charge out of pending.
func (r *PostgresRepo) Finalize(ctx context.Context, id string, target Status, errorMessage string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE charges
		SET status = $2, error_message = $3, updated_at = $4, completed_at = $4
		WHERE id = $1 AND status = 'pending'`,
		id, target, errorMessage, now)
	if err != nil {
		return false, fmt.Errorf("finalize charge %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize charge %s: rows affected: %w", id, err)
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Charge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chargeColumns+`
		FROM charges
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending charges: %w", err)
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListActiveOptions(ctx context.Context) ([]Option, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, credits, bonus_credits,
		       display_order, popular, active, created_at, updated_at
		FROM charge_options
		WHERE active = TRUE
		ORDER BY display_order ASC, price ASC`)
	if err != nil {
		return nil, fmt.Errorf("list charge options: %w", err)
	}
	defer rows.Close()

	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.Price, &o.Credits,
			&o.BonusCredits, &o.DisplayOrder, &o.Popular, &o.Active,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan charge option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOption(ctx context.Context, id string) (Option, bool, error) {
	var o Option
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, credits, bonus_credits,
		       display_order, popular, active, created_at, updated_at
		FROM charge_options
		WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Description, &o.Price, &o.Credits,
			&o.BonusCredits, &o.DisplayOrder, &o.Popular, &o.Active,
			&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return Option{}, false, nil
	}
	if err != nil {
		return Option{}, false, fmt.Errorf("get charge option %s: %w", id, err)
	}
	return o, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepo) getOne(ctx context.Context, query string, args ...any) (Charge, bool, error) {
	c, err := scanCharge(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return Charge{}, false, nil
	}
	if err != nil {
		return Charge{}, false, err
	}
	return c, true, nil
}

func scanCharge(row rowScanner) (Charge, error) {
	var c Charge
	var completed sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.RequestedAmount, &c.CreditAmount,
		&c.GatewayIntentID, &c.GatewayClientSecret, &c.Status, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt, &completed)
	if err != nil {
		if err == sql.ErrNoRows {
			return Charge{}, err
		}
		return Charge{}, fmt.Errorf("scan charge: %w", err)
	}
	if completed.Valid {
		c.CompletedAt = &completed.Time
	}
	return c, nil
}
