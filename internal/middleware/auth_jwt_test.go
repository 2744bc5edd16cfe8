package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthJWTRoundTrip(t *testing.T) {
	const secret = "test-secret"
	token, err := SignToken(secret, "user-1", "pro", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	var gotUserID string
	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Fatalf("user id = %q, want user-1", gotUserID)
	}
}

func TestAuthJWTQueryToken(t *testing.T) {
	const secret = "test-secret"
	token, err := SignToken(secret, "user-2", "free", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	var gotUserID string
	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-2" {
		t.Fatalf("user id = %q, want user-2", gotUserID)
	}
}

func TestAuthJWTRejects(t *testing.T) {
	const secret = "test-secret"
	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{name: "missing header", setup: func(r *http.Request) {}},
		{name: "malformed header", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Token abc")
		}},
		{name: "garbage token", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.jwt")
		}},
		{name: "wrong secret", setup: func(r *http.Request) {
			token, _ := SignToken("other-secret", "user-1", "free", time.Hour)
			r.Header.Set("Authorization", "Bearer "+token)
		}},
		{name: "expired", setup: func(r *http.Request) {
			token, _ := SignToken(secret, "user-1", "free", -time.Minute)
			r.Header.Set("Authorization", "Bearer "+token)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}
