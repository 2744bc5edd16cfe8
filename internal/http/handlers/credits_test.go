package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func TestCreditsBalance(t *testing.T) {
	app, _ := newTestApp(t, 7)

	rec := httptest.NewRecorder()
	app.CreditsBalance(rec, authedRequest(http.MethodGet, "/v1/credits", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["balance"].(float64) != 7 {
		t.Fatalf("balance = %v, want 7", body["balance"])
	}
}

func TestCreditsPurchaseUpgradesPlanAndGrants(t *testing.T) {
	app, store := newTestApp(t, 1)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/credits/purchase", `{"plan":"pro"}`)
	app.CreditsPurchase(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["plan"] != "pro" {
		t.Fatalf("plan = %v, want pro", body["plan"])
	}
	if body["balance"].(float64) != 51 {
		t.Fatalf("balance = %v, want 51", body["balance"])
	}

	user, err := store.Users().GetByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Plan != domain.UserPlanPro {
		t.Fatalf("plan = %s, want pro", user.Plan)
	}

	txns, _ := app.Ledger.History(context.Background(), testUserID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Delta != domain.PlanCredits(domain.UserPlanPro) {
		t.Fatalf("delta = %d, want %d", txns[0].Delta, domain.PlanCredits(domain.UserPlanPro))
	}
}

func TestCreditsPurchaseRejectsUnknownPlan(t *testing.T) {
	app, _ := newTestApp(t, 1)

	for _, plan := range []string{"free", "platinum", ""} {
		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/v1/credits/purchase", `{"plan":"`+plan+`"}`)
		app.CreditsPurchase(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("plan %q: status = %d, want 400", plan, rec.Code)
		}
	}
}

func TestCreditsHistoryListsTransactions(t *testing.T) {
	app, _ := newTestApp(t, 5)
	ctx := context.Background()

	if err := app.Ledger.Grant(ctx, testUserID, 10, "Promo grant"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	rec := httptest.NewRecorder()
	app.CreditsHistory(rec, authedRequest(http.MethodGet, "/v1/credits/history", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	first := items[0].(map[string]any)
	if first["delta"].(float64) != 10 || first["reason"] != "Promo grant" {
		t.Fatalf("unexpected transaction: %v", first)
	}
}
