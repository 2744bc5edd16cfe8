// Package orchestrator owns the photo job state machine. A submission
// reserves one credit, creates the job in queued state and runs it to exactly
// one terminal state: completed commits the reservation, failed releases it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/infra/metrics"
	"server/internal/ledger"
	"server/internal/providers/inference"
	"server/internal/storage"
)

// EventSink receives job lifecycle events. The notification hub implements
// it; delivery failures never reach the orchestrator.
type EventSink interface {
	Publish(ev domain.JobEvent)
}

// Config tunes job execution.
type Config struct {
	// WaitCeiling bounds the total provider wait per job; exceeding it
	// fails the job with reason "timeout".
	WaitCeiling time.Duration
	// MaxRetries bounds retries of transient provider errors.
	MaxRetries int
	RetryBase  time.Duration
	RetryMax   time.Duration
}

func (c Config) withDefaults() Config {
	if c.WaitCeiling <= 0 {
		c.WaitCeiling = 2 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 15 * time.Second
	}
	return c
}

// Orchestrator coordinates jobs across the ledger, the record store, the
// inference provider and the notification sink.
type Orchestrator struct {
	ctx      context.Context
	cfg      Config
	photos   domain.PhotoRepository
	ledger   *ledger.Ledger
	provider inference.Provider
	thumbs   *storage.Thumbnailer
	events   EventSink
	logger   zerolog.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	done map[string]chan struct{}
}

// New creates an orchestrator. ctx bounds the lifetime of background job
// runs; thumbs may be nil, in which case the processed image doubles as its
// own thumbnail.
func New(ctx context.Context, cfg Config, photos domain.PhotoRepository, lg *ledger.Ledger, provider inference.Provider, thumbs *storage.Thumbnailer, events EventSink, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ctx:      ctx,
		cfg:      cfg.withDefaults(),
		photos:   photos,
		ledger:   lg,
		provider: provider,
		thumbs:   thumbs,
		events:   events,
		logger:   logger,
		done:     make(map[string]chan struct{}),
	}
}

// Submit validates the request, reserves one credit and creates the job in
// queued state, then runs it asynchronously. The returned record is a snapshot
// of the queued job; current state comes from the repository or AwaitTerminal.
// Validation and shortfall errors leave no state behind.
func (o *Orchestrator) Submit(ctx context.Context, userID, sourceURL, style string) (*domain.PhotoJob, error) {
	if err := ValidateSubmission(sourceURL, style); err != nil {
		return nil, err
	}
	jobID := uuid.NewString()
	res, err := o.ledger.Reserve(ctx, userID, jobID, 1, generationReason(style))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.PhotoJob{
		ID:              jobID,
		UserID:          userID,
		SourceURL:       sourceURL,
		Style:           style,
		Status:          domain.JobStatusQueued,
		ReservedCredits: res.Amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.photos.Create(ctx, job); err != nil {
		// The job never existed; hand the credit back.
		_ = o.ledger.Release(ctx, res, refundReason(style))
		return nil, err
	}

	o.mu.Lock()
	o.done[jobID] = make(chan struct{})
	o.mu.Unlock()

	o.events.Publish(domain.NewJobEvent(job))
	o.logger.Info().Str("job_id", jobID).Str("user_id", userID).Str("style", style).Msg("orchestrator: job queued")

	// Snapshot before the run goroutine starts mutating the record it owns.
	// The repository stays the single source of truth for current state.
	snapshot := *job

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(job, res)
	}()
	return &snapshot, nil
}

// AwaitTerminal blocks until the job reaches a terminal state, then returns
// its final record. Jobs unknown to this orchestrator instance are fetched
// directly.
func (o *Orchestrator) AwaitTerminal(ctx context.Context, jobID string) (*domain.PhotoJob, error) {
	o.mu.Lock()
	ch := o.done[jobID]
	o.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.photos.GetByID(ctx, jobID)
}

// Close waits for all in-flight jobs to reach a terminal state.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) run(job *domain.PhotoJob, res *domain.Reservation) {
	defer o.finish(job.ID)
	started := time.Now()

	job.Status = domain.JobStatusProcessing
	if err := o.photos.UpdateStatus(o.ctx, job.ID, domain.JobStatusProcessing, "", "", ""); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: mark processing failed")
	}
	o.events.Publish(domain.NewJobEvent(job))

	runCtx, cancel := context.WithTimeout(o.ctx, o.cfg.WaitCeiling)
	result, err := o.execute(runCtx, job)
	cancel()
	if err != nil {
		o.fail(job, res, failureReason(err))
		metrics.ObserveJob(string(domain.JobStatusFailed), time.Since(started))
		return
	}

	job.ProcessedURL = result.ProcessedURL
	job.ThumbnailURL = o.thumbnail(job, result.ProcessedURL)
	job.Status = domain.JobStatusCompleted
	if err := o.photos.UpdateStatus(o.ctx, job.ID, domain.JobStatusCompleted, "", job.ProcessedURL, job.ThumbnailURL); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: mark completed failed")
	}
	if err := o.ledger.Commit(o.ctx, res); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: commit reservation failed")
	}
	o.events.Publish(domain.NewJobEvent(job))
	metrics.ObserveJob(string(domain.JobStatusCompleted), time.Since(started))
	o.logger.Info().Str("job_id", job.ID).Dur("elapsed", time.Since(started)).Msg("orchestrator: job completed")
}

// execute submits to the provider and awaits the result, retrying transient
// errors with exponential backoff inside the caller's deadline.
func (o *Orchestrator) execute(ctx context.Context, job *domain.PhotoJob) (inference.Result, error) {
	params := inference.ParamsForStyle(job.Style)
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return inference.Result{}, ctx.Err()
			case <-time.After(o.retryDelay(attempt - 1)):
			}
		}
		handle, err := o.provider.Submit(ctx, job.SourceURL, job.Style, params)
		if err == nil {
			var result inference.Result
			result, err = o.provider.Await(ctx, handle)
			if err == nil {
				return result, nil
			}
		}
		if ctx.Err() != nil {
			return inference.Result{}, ctx.Err()
		}
		if !inference.IsTransient(err) {
			return inference.Result{}, err
		}
		lastErr = err
		o.logger.Warn().Err(err).Str("job_id", job.ID).Int("attempt", attempt+1).Msg("orchestrator: transient provider error")
	}
	return inference.Result{}, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (o *Orchestrator) fail(job *domain.PhotoJob, res *domain.Reservation, reason string) {
	if err := o.ledger.Release(o.ctx, res, refundReason(job.Style)); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: release reservation failed")
	}
	job.Status = domain.JobStatusFailed
	job.ErrorReason = reason
	if err := o.photos.UpdateStatus(o.ctx, job.ID, domain.JobStatusFailed, reason, "", ""); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: mark failed failed")
	}
	o.events.Publish(domain.NewJobEvent(job))
	o.logger.Warn().Str("job_id", job.ID).Str("reason", reason).Msg("orchestrator: job failed")
}

// thumbnail stores a preview of the processed image. Thumbnailing is
// best-effort: on any error the processed image stands in for its thumbnail,
// matching the job's completed event shape.
func (o *Orchestrator) thumbnail(job *domain.PhotoJob, processedURL string) string {
	if o.thumbs == nil {
		return processedURL
	}
	ctx, cancel := context.WithTimeout(o.ctx, 30*time.Second)
	defer cancel()
	url, err := o.thumbs.FromURL(ctx, processedURL, "thumbnails/"+job.ID+".jpg")
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: thumbnail generation failed")
		return processedURL
	}
	return url
}

func (o *Orchestrator) finish(jobID string) {
	o.mu.Lock()
	if ch, ok := o.done[jobID]; ok {
		close(ch)
		delete(o.done, jobID)
	}
	o.mu.Unlock()
}

// retryDelay returns base * 2^attempt capped at the configured maximum.
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	delay := o.cfg.RetryBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= o.cfg.RetryMax {
			return o.cfg.RetryMax
		}
	}
	if delay > o.cfg.RetryMax {
		return o.cfg.RetryMax
	}
	return delay
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}

func generationReason(style string) string {
	return fmt.Sprintf("Photo generation - %s style", cases.Title(language.English).String(style))
}

func refundReason(style string) string {
	return fmt.Sprintf("Refund - %s generation failed", cases.Title(language.English).String(style))
}
