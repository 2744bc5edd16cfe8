package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/ledger"
)

// Reconciler fails jobs stranded in a non-terminal state (typically after a
// crash of the process running them) and releases their reservations. It runs
// on a schedule from cmd/api.
type Reconciler struct {
	photos domain.PhotoRepository
	ledger *ledger.Ledger
	events EventSink
	logger zerolog.Logger
	maxAge time.Duration
}

// NewReconciler creates a reconciler that considers non-terminal jobs older
// than maxAge to be stranded.
func NewReconciler(photos domain.PhotoRepository, lg *ledger.Ledger, events EventSink, logger zerolog.Logger, maxAge time.Duration) *Reconciler {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &Reconciler{photos: photos, ledger: lg, events: events, logger: logger, maxAge: maxAge}
}

// Sweep fails every stranded job and refunds its held credit. Individual
// failures are logged and do not interrupt the sweep.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.maxAge)
	jobs, err := r.photos.ListStuck(ctx, cutoff)
	if err != nil {
		return err
	}
	for i := range jobs {
		job := jobs[i]
		res, err := r.ledger.ActiveReservation(ctx, job.ID)
		switch {
		case err == nil:
			if err := r.ledger.Release(ctx, res, refundReason(job.Style)); err != nil {
				r.logger.Error().Err(err).Str("job_id", job.ID).Msg("reconciler: release failed")
				continue
			}
		case errors.Is(err, domain.ErrNotFound):
			// Reservation already settled; still close out the job.
		default:
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("reconciler: reservation lookup failed")
			continue
		}
		job.Status = domain.JobStatusFailed
		job.ErrorReason = "timeout"
		if err := r.photos.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, job.ErrorReason, "", ""); err != nil {
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("reconciler: mark failed failed")
			continue
		}
		r.events.Publish(domain.NewJobEvent(&job))
		r.logger.Warn().Str("job_id", job.ID).Msg("reconciler: stranded job failed and refunded")
	}
	return nil
}
