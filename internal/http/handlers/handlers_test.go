package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/dispatch"
	"server/internal/domain"
	"server/internal/ledger"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/providers/inference"
)

const testUserID = "44444444-4444-4444-4444-444444444444"

type instantProvider struct{}

func (instantProvider) Submit(ctx context.Context, imageURL, style string, params inference.StyleParams) (inference.Handle, error) {
	return inference.Handle{ID: "pred"}, nil
}

func (instantProvider) Await(ctx context.Context, h inference.Handle) (inference.Result, error) {
	return inference.Result{ProcessedURL: "https://cdn.example.com/out.png"}, nil
}

func newTestApp(t *testing.T, balance int) (*App, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	if err := store.Create(context.Background(), &domain.User{
		ID:            testUserID,
		Email:         "pm@example.com",
		Name:          "Test User",
		Plan:          domain.UserPlanFree,
		CreditBalance: balance,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	lg := ledger.New(store, zerolog.Nop())
	hub := notify.NewHub(zerolog.Nop())
	orch := orchestrator.New(context.Background(), orchestrator.Config{RetryBase: time.Millisecond}, store.Jobs(), lg, instantProvider{}, nil, hub, zerolog.Nop())
	app := &App{
		Users:        store.Users(),
		Photos:       store.Jobs(),
		Ledger:       lg,
		Orchestrator: orch,
		Dispatcher:   dispatch.New(lg, orch, zerolog.Nop()),
		Hub:          hub,
		Logger:       zerolog.Nop(),
	}
	return app, store
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), testUserID))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}
