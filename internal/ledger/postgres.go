package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credits-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresStore persists accounts and transactions in Postgres.
//
// Assumed tables:
// - accounts(user_id PK, balance, status, created_at, updated_at)
// - transactions(id PK, user_id, type, amount, balance_after,
//   charge_ref NULL, description, created_at)
// plus a partial unique index guarding the double-credit invariant:
//   UNIQUE (charge_ref) WHERE type = 'charge'
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Apply(ctx context.Context, in ApplyInput) (Transaction, error) {
	var out Transaction

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lazy get-or-create, then lock the row to serialize per-account
		// mutation. Different accounts lock different rows and do not block
		// each other.
		if err := ensureAccount(ctx, tx, in.UserID, in.Now); err != nil {
			return err
		}
		acct, err := lockAccount(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if acct.Status == AccountStatusFrozen {
			return ErrAccountFrozen
		}

		newBalance := acct.Balance + in.Amount
		if newBalance < 0 {
			return &InsufficientBalanceError{Requested: -in.Amount, Available: acct.Balance}
		}

		entry := Transaction{
			ID:           uuid.NewString(),
			UserID:       in.UserID,
			Type:         in.Type,
			Amount:       in.Amount,
			BalanceAfter: newBalance,
			ChargeRef:    in.ChargeRef,
			Description:  in.Description,
			CreatedAt:    in.Now,
		}
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}
		if err := updateBalance(ctx, tx, in.UserID, newBalance, in.Now); err != nil {
			return err
		}
		out = entry
		return nil
	})

	return out, err
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT balance FROM accounts WHERE user_id = $1`
	var balance int64
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (Account, bool, error) {
	const q = `
SELECT user_id, balance, status, created_at, updated_at
FROM accounts
WHERE user_id = $1
`
	var a Account
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&a.UserID,
		&a.Balance,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return a, true, nil
}

func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	const q = `
SELECT id, user_id, type, amount, balance_after, charge_ref, description, created_at
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var chargeRef sql.NullString
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Type,
			&t.Amount,
			&t.BalanceAfter,
			&chargeRef,
			&t.Description,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.ChargeRef = chargeRef.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SumTransactions(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`
	var sum int64
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (s *PostgresStore) MigrateLegacy(ctx context.Context, userID string, amount int64, description string, now time.Time) (bool, error) {
	created := false

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO accounts (user_id, balance, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id) DO NOTHING
`
		res, err := tx.ExecContext(ctx, q, userID, amount, AccountStatusActive, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Already migrated (or organically created); leave it alone.
			return nil
		}
		created = true

		if amount > 0 {
			return insertTransaction(ctx, tx, Transaction{
				ID:           uuid.NewString(),
				UserID:       userID,
				Type:         TransactionTypeBonus,
				Amount:       amount,
				BalanceAfter: amount,
				Description:  description,
				CreatedAt:    now,
			})
		}
		return nil
	})

	return created, err
}

func (s *PostgresStore) Freeze(ctx context.Context, userID string, now time.Time) error {
	const q = `UPDATE accounts SET status = $2, updated_at = $3 WHERE user_id = $1`
	res, err := s.db.ExecContext(ctx, q, userID, AccountStatusFrozen, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, userID string) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
		return err
	})
}

func ensureAccount(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	const q = `
INSERT INTO accounts (user_id, balance, status, created_at, updated_at)
VALUES ($1, 0, $2, $3, $3)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, userID, AccountStatusActive, now)
	return err
}

func lockAccount(ctx context.Context, tx *sql.Tx, userID string) (Account, error) {
	const q = `
SELECT user_id, balance, status, created_at, updated_at
FROM accounts
WHERE user_id = $1
FOR UPDATE
`
	var a Account
	if err := tx.QueryRowContext(ctx, q, userID).Scan(
		&a.UserID,
		&a.Balance,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	const q = `
INSERT INTO transactions (
  id, user_id, type, amount, balance_after, charge_ref, description, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := tx.ExecContext(ctx, q,
		t.ID,
		t.UserID,
		t.Type,
		t.Amount,
		t.BalanceAfter,
		nullIfEmpty(t.ChargeRef),
		t.Description,
		t.CreatedAt,
	)
	return err
}

func updateBalance(ctx context.Context, tx *sql.Tx, userID string, balance int64, now time.Time) error {
	const q = `UPDATE accounts SET balance = $2, updated_at = $3 WHERE user_id = $1`
	_, err := tx.ExecContext(ctx, q, userID, balance, now)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
