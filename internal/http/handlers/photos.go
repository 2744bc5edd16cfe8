package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/dispatch"
	"server/internal/domain"
	"server/internal/orchestrator"
)

type generateRequest struct {
	ImageURL string `json:"image_url"`
	Style    string `json:"style"`
}

type jobDTO struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Style        string    `json:"style"`
	SourceURL    string    `json:"source_url"`
	ProcessedURL string    `json:"processed_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toJobDTO(job *domain.PhotoJob) jobDTO {
	return jobDTO{
		ID:           job.ID,
		Status:       string(job.Status),
		Style:        job.Style,
		SourceURL:    job.SourceURL,
		ProcessedURL: job.ProcessedURL,
		ThumbnailURL: job.ThumbnailURL,
		Error:        job.ErrorReason,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func (a *App) PhotosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Orchestrator.Submit(r.Context(), userID, req.ImageURL, req.Style)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("submit job failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		}
		return
	}
	balance, _ := a.Ledger.Balance(r.Context(), userID)
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":  job.ID,
		"status":  string(job.Status),
		"balance": balance,
	})
}

type batchRequest struct {
	ImageURLs []string `json:"image_urls"`
	Styles    []string `json:"styles"`
}

type batchItemDTO struct {
	ImageURL     string `json:"image_url"`
	Style        string `json:"style"`
	JobID        string `json:"job_id,omitempty"`
	ProcessedURL string `json:"processed_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PhotosBatch fans out every image x style pair and waits for all of them to
// finish, reporting per-pair outcomes.
func (a *App) PhotosBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	var items []dispatch.Item
	for _, u := range req.ImageURLs {
		for _, s := range req.Styles {
			items = append(items, dispatch.Item{SourceURL: u, Style: s})
		}
	}
	outcome, err := a.Dispatcher.SubmitMany(r.Context(), userID, items)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", err.Error())
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("batch submit failed")
			a.error(w, http.StatusInternalServerError, "internal", "batch failed")
		}
		return
	}
	results := make([]batchItemDTO, len(items))
	for i, item := range items {
		results[i] = batchItemDTO{ImageURL: item.SourceURL, Style: item.Style}
	}
	for _, res := range outcome.Succeeded {
		results[res.Index].JobID = res.JobID
		results[res.Index].ProcessedURL = res.ProcessedURL
		results[res.Index].ThumbnailURL = res.ThumbnailURL
	}
	for _, f := range outcome.Failed {
		results[f.Index].Error = f.Reason
	}
	balance, _ := a.Ledger.Balance(r.Context(), userID)
	a.json(w, http.StatusOK, map[string]any{
		"total":     len(items),
		"succeeded": len(outcome.Succeeded),
		"failed":    len(outcome.Failed),
		"results":   results,
		"balance":   balance,
	})
}

func (a *App) PhotoGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	job, err := a.Photos.GetByID(r.Context(), jobID)
	if err != nil || job.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "photo not found")
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

const historyLimit = 20

func (a *App) PhotosHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Photos.ListByUser(r.Context(), userID, historyLimit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("list photos failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	items := make([]jobDTO, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobDTO(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) PhotosUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	maxBytes := a.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = orchestrator.MaxSourceBytes
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}
	contentType := r.Header.Get("Content-Type")
	width, height, err := orchestrator.ValidateImage(data, contentType)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	key := fmt.Sprintf("uploads/%s/%s", userID, uuid.NewString())
	url, err := a.Store.Put(r.Context(), key, data, contentType)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("store upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"url":    url,
		"width":  width,
		"height": height,
		"bytes":  len(data),
	})
}
