package domain

import "time"

// CreditTransaction is one row of the append-only credit log. Rows are
// immutable once written; a user's balance always equals the sum of their
// deltas.
type CreditTransaction struct {
	ID        string
	UserID    string
	Delta     int
	Reason    string
	CreatedAt time.Time
}

// Reservation ties a held credit deduction to one job. A job has at most one
// active reservation; once settled (committed or released) further settlement
// attempts are no-ops. The settled flag is owned by the ledger store, which
// flips it atomically exactly once.
type Reservation struct {
	ID        string
	JobID     string
	UserID    string
	Amount    int
	Settled   bool
	CreatedAt time.Time
}
