package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/dispatch"
	"server/internal/domain"
	"server/internal/ledger"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/storage"
)

type App struct {
	Users        domain.UserRepository
	Photos       domain.PhotoRepository
	Ledger       *ledger.Ledger
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatch.Dispatcher
	Hub          *notify.Hub
	Store        storage.BlobStore
	Logger       zerolog.Logger

	// MaxUploadBytes caps POST /v1/photos/upload bodies. Zero means the
	// orchestrator's source-image limit.
	MaxUploadBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
