// Package dispatch fans multiple independent photo submissions out on top of
// the orchestrator's single-job API and aggregates partial outcomes. There is
// no cross-item atomicity: each item holds its own reservation and fails or
// succeeds alone.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/ledger"
	"server/internal/orchestrator"
)

// Item is one photo generation request within a batch.
type Item struct {
	SourceURL string `json:"source_url"`
	Style     string `json:"style"`
}

// ItemResult describes a batch item that reached completed.
type ItemResult struct {
	Index        int    `json:"index"`
	JobID        string `json:"job_id"`
	ProcessedURL string `json:"processed_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ItemFailure describes a batch item that was rejected or reached failed.
type ItemFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Outcome aggregates a batch. Ordering within either list is unspecified.
type Outcome struct {
	Succeeded []ItemResult  `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

// Dispatcher runs batches.
type Dispatcher struct {
	ledger *ledger.Ledger
	orch   *orchestrator.Orchestrator
	logger zerolog.Logger
}

// New creates a dispatcher.
func New(lg *ledger.Ledger, orch *orchestrator.Orchestrator, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{ledger: lg, orch: orch, logger: logger}
}

// SubmitMany checks the balance covers the whole batch up front, then
// dispatches every item concurrently through the full single-job path and
// waits for all of them to reach a terminal state.
//
// The upfront check is advisory: it races against other spends on the same
// balance, and an item can still fail its own reserve. Per-item reservations
// remain the source of truth.
func (d *Dispatcher) SubmitMany(ctx context.Context, userID string, items []Item) (*Outcome, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", domain.ErrValidation)
	}
	balance, err := d.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < len(items) {
		return nil, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientCredits, len(items), balance)
	}

	type slot struct {
		result  *ItemResult
		failure *ItemFailure
	}
	slots := make([]slot, len(items))

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int, item Item) {
			defer wg.Done()
			job, err := d.orch.Submit(ctx, userID, item.SourceURL, item.Style)
			if err != nil {
				slots[idx].failure = &ItemFailure{Index: idx, Reason: err.Error()}
				return
			}
			final, err := d.orch.AwaitTerminal(ctx, job.ID)
			if err != nil {
				slots[idx].failure = &ItemFailure{Index: idx, Reason: err.Error()}
				return
			}
			if final.Status != domain.JobStatusCompleted {
				slots[idx].failure = &ItemFailure{Index: idx, Reason: final.ErrorReason}
				return
			}
			slots[idx].result = &ItemResult{
				Index:        idx,
				JobID:        final.ID,
				ProcessedURL: final.ProcessedURL,
				ThumbnailURL: final.ThumbnailURL,
			}
		}(i, items[i])
	}
	wg.Wait()

	outcome := &Outcome{}
	for _, s := range slots {
		switch {
		case s.result != nil:
			outcome.Succeeded = append(outcome.Succeeded, *s.result)
		case s.failure != nil:
			outcome.Failed = append(outcome.Failed, *s.failure)
		}
	}
	d.logger.Info().
		Str("user_id", userID).
		Int("total", len(items)).
		Int("succeeded", len(outcome.Succeeded)).
		Int("failed", len(outcome.Failed)).
		Msg("dispatch: batch finished")
	return outcome, nil
}
