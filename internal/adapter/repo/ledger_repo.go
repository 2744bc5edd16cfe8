package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"server/internal/domain"
)

// LedgerStorePG implements domain.LedgerStore backed by PostgreSQL. Balance
// mutations use conditional updates inside a transaction, so concurrent
// reserves against the same user serialize on the row and can never drive the
// balance negative.
type LedgerStorePG struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new ledger store.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStorePG {
	return &LedgerStorePG{pool: pool}
}

// Reserve atomically checks and decrements the balance, appends the negative
// transaction row and records the reservation. On shortfall no state is
// written.
func (s *LedgerStorePG) Reserve(ctx context.Context, res *domain.Reservation, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE users
SET credit_balance = credit_balance - $2,
    updated_at = NOW()
WHERE id = $1
  AND credit_balance >= $2;
`, res.UserID, res.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, res.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, delta, reason)
VALUES ($1, $2, $3, $4);
`, uuid.NewString(), res.UserID, -res.Amount, reason); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO reservations (id, job_id, user_id, amount, settled)
VALUES ($1, $2, $3, $4, FALSE);
`, res.ID, res.JobID, res.UserID, res.Amount); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Commit flips the settled flag. The conditional update makes repeated calls
// no-ops; the balance was already decremented at reserve time.
func (s *LedgerStorePG) Commit(ctx context.Context, reservationID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE reservations SET settled = TRUE WHERE id = $1 AND NOT settled`, reservationID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, reservationID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// Release settles the reservation and refunds its amount exactly once. The
// settled flag guards the refund, so a redundant release never double-credits.
func (s *LedgerStorePG) Release(ctx context.Context, reservationID, reason string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var userID string
	var amount int
	err = tx.QueryRow(ctx, `
UPDATE reservations
SET settled = TRUE
WHERE id = $1
  AND NOT settled
RETURNING user_id, amount;
`, reservationID).Scan(&userID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, reservationID).Scan(&exists); err != nil {
				return false, err
			}
			if !exists {
				return false, domain.ErrNotFound
			}
			return false, nil
		}
		return false, err
	}

	if _, err := tx.Exec(ctx, `
UPDATE users SET credit_balance = credit_balance + $2, updated_at = NOW() WHERE id = $1;
`, userID, amount); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, delta, reason)
VALUES ($1, $2, $3, $4);
`, uuid.NewString(), userID, amount, reason); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Grant credits the balance and appends the positive transaction row.
func (s *LedgerStorePG) Grant(ctx context.Context, userID string, amount int, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users SET credit_balance = credit_balance + $2, updated_at = NOW() WHERE id = $1`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, delta, reason)
VALUES ($1, $2, $3, $4);
`, uuid.NewString(), userID, amount, reason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Balance returns the user's current balance.
func (s *LedgerStorePG) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := s.pool.QueryRow(ctx, `SELECT credit_balance FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Transactions returns the user's credit log, newest first.
func (s *LedgerStorePG) Transactions(ctx context.Context, userID string) ([]domain.CreditTransaction, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, delta, reason, created_at
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ActiveReservationByJob returns the unsettled reservation held for a job.
func (s *LedgerStorePG) ActiveReservationByJob(ctx context.Context, jobID string) (*domain.Reservation, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, job_id, user_id, amount, settled, created_at
FROM reservations
WHERE job_id = $1
  AND NOT settled;
`, jobID)
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.JobID, &res.UserID, &res.Amount, &res.Settled, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

var _ domain.LedgerStore = (*LedgerStorePG)(nil)
