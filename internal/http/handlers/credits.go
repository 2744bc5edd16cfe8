package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
)

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"balance": balance})
}

type transactionDTO struct {
	ID        string    `json:"id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *App) CreditsHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	txns, err := a.Ledger.History(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("load transactions failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	items := make([]transactionDTO, 0, len(txns))
	for _, t := range txns {
		items = append(items, transactionDTO{ID: t.ID, Delta: t.Delta, Reason: t.Reason, CreatedAt: t.CreatedAt})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type purchaseRequest struct {
	Plan string `json:"plan"`
}

// CreditsPurchase upgrades the user's plan and grants the plan's credit
// allowance. Payment capture happens upstream; this endpoint trusts the
// caller's gateway.
func (a *App) CreditsPurchase(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	plan := domain.UserPlan(req.Plan)
	if plan != domain.UserPlanPro && plan != domain.UserPlanEnterprise {
		a.error(w, http.StatusBadRequest, "bad_request", "plan must be pro or enterprise")
		return
	}
	if err := a.Users.UpdatePlan(r.Context(), userID, plan); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	reason := fmt.Sprintf("%s plan purchase", cases.Title(language.English).String(string(plan)))
	if err := a.Ledger.Grant(r.Context(), userID, domain.PlanCredits(plan), reason); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("grant plan credits failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to grant credits")
		return
	}
	balance, _ := a.Ledger.Balance(r.Context(), userID)
	a.json(w, http.StatusOK, map[string]any{
		"plan":    string(plan),
		"balance": balance,
	})
}
