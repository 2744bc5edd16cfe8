package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

// Memory is an in-process implementation of the repository contracts. It is
// intended for development and test environments where PostgreSQL is not
// available. All operations share one mutex, which makes the ledger
// primitives trivially linearizable.
type Memory struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	jobs         map[string]*domain.PhotoJob
	reservations map[string]*domain.Reservation
	transactions []domain.CreditTransaction
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]*domain.User),
		jobs:         make(map[string]*domain.PhotoJob),
		reservations: make(map[string]*domain.Reservation),
	}
}

// Create inserts a user.
func (m *Memory) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.users[cp.ID] = &cp
	return nil
}

// GetByID fetches a user.
func (m *Memory) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UpdatePlan switches the user's plan.
func (m *Memory) UpdatePlan(ctx context.Context, id string, plan domain.UserPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Plan = plan
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateJob inserts a photo job. The method name avoids clashing with the
// user Create on the shared receiver; callers use the split accessors below.
func (m *Memory) createJob(job *domain.PhotoJob) {
	cp := *job
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.jobs[cp.ID] = &cp
}

// Jobs exposes the store as a domain.PhotoRepository.
func (m *Memory) Jobs() domain.PhotoRepository { return memoryJobs{m} }

// Users exposes the store as a domain.UserRepository.
func (m *Memory) Users() domain.UserRepository { return m }

type memoryJobs struct{ m *Memory }

func (j memoryJobs) Create(ctx context.Context, job *domain.PhotoJob) error {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	j.m.createJob(job)
	return nil
}

func (j memoryJobs) GetByID(ctx context.Context, jobID string) (*domain.PhotoJob, error) {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	job, ok := j.m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (j memoryJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.PhotoJob, error) {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	var jobs []domain.PhotoJob
	for _, job := range j.m.jobs {
		if job.UserID == userID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.After(jobs[b].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (j memoryJobs) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errReason, processedURL, thumbnailURL string) error {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	job, ok := j.m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrLedgerConflict
	}
	job.Status = status
	if errReason != "" {
		job.ErrorReason = errReason
	}
	if processedURL != "" {
		job.ProcessedURL = processedURL
	}
	if thumbnailURL != "" {
		job.ThumbnailURL = thumbnailURL
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (j memoryJobs) ListStuck(ctx context.Context, cutoff time.Time) ([]domain.PhotoJob, error) {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	var jobs []domain.PhotoJob
	for _, job := range j.m.jobs {
		if !job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

// Reserve implements the atomic check-and-decrement under the store mutex.
func (m *Memory) Reserve(ctx context.Context, res *domain.Reservation, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[res.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.CreditBalance < res.Amount {
		return domain.ErrInsufficientCredits
	}
	u.CreditBalance -= res.Amount
	u.UpdatedAt = time.Now().UTC()
	m.appendTransaction(res.UserID, -res.Amount, reason)
	cp := *res
	cp.Settled = false
	cp.CreatedAt = time.Now().UTC()
	m.reservations[cp.ID] = &cp
	return nil
}

// Commit settles the reservation without touching the balance.
func (m *Memory) Commit(ctx context.Context, reservationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[reservationID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if res.Settled {
		return false, nil
	}
	res.Settled = true
	return true, nil
}

// Release settles the reservation and refunds exactly once.
func (m *Memory) Release(ctx context.Context, reservationID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[reservationID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if res.Settled {
		return false, nil
	}
	res.Settled = true
	if u, ok := m.users[res.UserID]; ok {
		u.CreditBalance += res.Amount
		u.UpdatedAt = time.Now().UTC()
	}
	m.appendTransaction(res.UserID, res.Amount, reason)
	return true, nil
}

// Grant credits the balance.
func (m *Memory) Grant(ctx context.Context, userID string, amount int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.CreditBalance += amount
	u.UpdatedAt = time.Now().UTC()
	m.appendTransaction(userID, amount, reason)
	return nil
}

// Balance returns the user's current balance.
func (m *Memory) Balance(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return u.CreditBalance, nil
}

// Transactions returns the user's credit log, newest first.
func (m *Memory) Transactions(ctx context.Context, userID string) ([]domain.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txns []domain.CreditTransaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID == userID {
			txns = append(txns, m.transactions[i])
		}
	}
	return txns, nil
}

// ActiveReservationByJob returns the unsettled reservation held for a job.
func (m *Memory) ActiveReservationByJob(ctx context.Context, jobID string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.reservations {
		if res.JobID == jobID && !res.Settled {
			cp := *res
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) appendTransaction(userID string, delta int, reason string) {
	m.transactions = append(m.transactions, domain.CreditTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

var (
	_ domain.UserRepository = (*Memory)(nil)
	_ domain.LedgerStore    = (*Memory)(nil)
)
