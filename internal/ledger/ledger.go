// Package ledger owns every mutation of a user's credit balance. Credits are
// spent through a reserve/commit/release cycle: reserving decrements the
// balance up front, committing settles the hold, and releasing refunds it.
// The underlying store guarantees the reserve is atomic per user.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra/metrics"
)

// Ledger coordinates credit movements on top of a domain.LedgerStore.
type Ledger struct {
	store  domain.LedgerStore
	logger zerolog.Logger
}

// New creates a Ledger over the given store.
func New(store domain.LedgerStore, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Reserve holds amount credits for a job. On insufficient balance it returns
// domain.ErrInsufficientCredits and no state is created.
func (l *Ledger) Reserve(ctx context.Context, userID, jobID string, amount int, reason string) (*domain.Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: reserve amount must be positive", domain.ErrValidation)
	}
	res := &domain.Reservation{
		ID:     uuid.NewString(),
		JobID:  jobID,
		UserID: userID,
		Amount: amount,
	}
	if err := l.store.Reserve(ctx, res, reason); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.ObserveLedgerOp("reserve", "insufficient")
		} else {
			metrics.ObserveLedgerOp("reserve", "error")
		}
		return nil, err
	}
	metrics.ObserveLedgerOp("reserve", "ok")
	l.logger.Debug().Str("user_id", userID).Str("job_id", jobID).Int("amount", amount).Msg("ledger: reserved")
	return res, nil
}

// Commit settles the reservation. The balance is unchanged: it was already
// decremented at reserve time. Committing an already settled reservation is a
// no-op.
func (l *Ledger) Commit(ctx context.Context, res *domain.Reservation) error {
	settled, err := l.store.Commit(ctx, res.ID)
	if err != nil {
		metrics.ObserveLedgerOp("commit", "error")
		return err
	}
	res.Settled = true
	if !settled {
		l.logger.Debug().Str("job_id", res.JobID).Msg("ledger: commit on settled reservation ignored")
		return nil
	}
	metrics.ObserveLedgerOp("commit", "ok")
	return nil
}

// Release refunds the reservation. The refund happens at most once: a second
// release, or a release after commit, is a no-op.
func (l *Ledger) Release(ctx context.Context, res *domain.Reservation, reason string) error {
	released, err := l.store.Release(ctx, res.ID, reason)
	if err != nil {
		metrics.ObserveLedgerOp("release", "error")
		return err
	}
	res.Settled = true
	if !released {
		l.logger.Debug().Str("job_id", res.JobID).Msg("ledger: release on settled reservation ignored")
		return nil
	}
	metrics.ObserveLedgerOp("release", "ok")
	l.logger.Info().Str("user_id", res.UserID).Str("job_id", res.JobID).Int("amount", res.Amount).Msg("ledger: released")
	return nil
}

// Grant credits the user's balance outside the reserve cycle (plan purchase,
// operator adjustment).
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: grant amount must be positive", domain.ErrValidation)
	}
	if err := l.store.Grant(ctx, userID, amount, reason); err != nil {
		metrics.ObserveLedgerOp("grant", "error")
		return err
	}
	metrics.ObserveLedgerOp("grant", "ok")
	l.logger.Info().Str("user_id", userID).Int("amount", amount).Str("reason", reason).Msg("ledger: granted")
	return nil
}

// Balance returns the single source of truth for the user's credits.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.Balance(ctx, userID)
}

// History returns the user's append-only credit log, newest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]domain.CreditTransaction, error) {
	return l.store.Transactions(ctx, userID)
}

// ActiveReservation returns the unsettled reservation for a job, if any.
func (l *Ledger) ActiveReservation(ctx context.Context, jobID string) (*domain.Reservation, error) {
	return l.store.ActiveReservationByJob(ctx, jobID)
}
