package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePlan(ctx context.Context, id string, plan UserPlan) error
}

// PhotoRepository defines persistence for photo jobs.
type PhotoRepository interface {
	Create(ctx context.Context, job *PhotoJob) error
	GetByID(ctx context.Context, jobID string) (*PhotoJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]PhotoJob, error)
	// UpdateStatus transitions a non-terminal job. Empty string arguments
	// leave the stored value untouched. Attempts to move a terminal job
	// are rejected with ErrLedgerConflict.
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errReason, processedURL, thumbnailURL string) error
	// ListStuck returns non-terminal jobs whose last update is older than
	// the cutoff. Used by the reconciler sweep.
	ListStuck(ctx context.Context, cutoff time.Time) ([]PhotoJob, error)
}

// LedgerStore is the atomic storage primitive underneath the credit ledger.
// Reserve must be linearizable per user: concurrent reserves whose combined
// amount exceeds the balance cannot all succeed.
type LedgerStore interface {
	// Reserve atomically checks balance >= amount, decrements it, appends
	// a negative transaction and records the reservation. On shortfall it
	// returns ErrInsufficientCredits and leaves no partial state.
	Reserve(ctx context.Context, res *Reservation, reason string) error
	// Commit marks the reservation settled. It reports whether this call
	// performed the settlement (false when already settled).
	Commit(ctx context.Context, reservationID string) (bool, error)
	// Release marks the reservation settled and, if this call performed
	// the settlement, appends a compensating positive transaction.
	Release(ctx context.Context, reservationID, reason string) (bool, error)
	// Grant credits the user's balance and appends a positive transaction.
	Grant(ctx context.Context, userID string, amount int, reason string) error
	Balance(ctx context.Context, userID string) (int, error)
	Transactions(ctx context.Context, userID string) ([]CreditTransaction, error)
	// ActiveReservationByJob returns the unsettled reservation held for a
	// job, or ErrNotFound when none exists.
	ActiveReservationByJob(ctx context.Context, jobID string) (*Reservation, error)
}
