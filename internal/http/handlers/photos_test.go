package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/storage"
)

func withChiParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jobID(i int) string {
	return fmt.Sprintf("job-%03d", i)
}

func TestPhotosGenerateAccepted(t *testing.T) {
	app, store := newTestApp(t, 3)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/photos/generate",
		`{"image_url":"https://cdn.example.com/in.png","style":"corporate"}`)
	app.PhotosGenerate(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatal("response missing job_id")
	}
	if body["status"] != "queued" {
		t.Fatalf("status field = %v, want queued", body["status"])
	}
	if body["balance"].(float64) != 2 {
		t.Fatalf("balance = %v, want 2", body["balance"])
	}

	// Let the job run to completion so the orchestrator goroutine finishes.
	if _, err := app.Orchestrator.AwaitTerminal(context.Background(), jobID); err != nil {
		t.Fatalf("AwaitTerminal: %v", err)
	}
	job, err := store.Jobs().GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("final status = %s, want completed", job.Status)
	}
}

func TestPhotosGenerateInsufficientCredits(t *testing.T) {
	app, store := newTestApp(t, 0)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/photos/generate",
		`{"image_url":"https://cdn.example.com/in.png","style":"corporate"}`)
	app.PhotosGenerate(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	jobs, _ := store.Jobs().ListByUser(context.Background(), testUserID, 10)
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestPhotosGenerateRejectsBadInput(t *testing.T) {
	app, _ := newTestApp(t, 3)

	cases := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{`},
		{name: "unknown style", body: `{"image_url":"https://cdn.example.com/in.png","style":"vintage"}`},
		{name: "bad url", body: `{"image_url":"ftp://x","style":"corporate"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.PhotosGenerate(rec, authedRequest(http.MethodPost, "/v1/photos/generate", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPhotoGetScopedToOwner(t *testing.T) {
	app, store := newTestApp(t, 3)

	other := &domain.PhotoJob{
		ID:        "other-job",
		UserID:    "someone-else",
		SourceURL: "https://cdn.example.com/in.png",
		Style:     domain.StyleCasual,
		Status:    domain.JobStatusCompleted,
	}
	if err := store.Jobs().Create(context.Background(), other); err != nil {
		t.Fatalf("create job: %v", err)
	}

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/v1/photos/other-job", "")
	req = withChiParam(req, "id", "other-job")
	app.PhotoGet(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPhotosHistoryNewestFirstCapped(t *testing.T) {
	app, store := newTestApp(t, 3)

	for i := 0; i < historyLimit+5; i++ {
		job := &domain.PhotoJob{
			ID:        jobID(i),
			UserID:    testUserID,
			SourceURL: "https://cdn.example.com/in.png",
			Style:     domain.StyleFormal,
			Status:    domain.JobStatusCompleted,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Jobs().Create(context.Background(), job); err != nil {
			t.Fatalf("create job %d: %v", i, err)
		}
	}

	rec := httptest.NewRecorder()
	app.PhotosHistory(rec, authedRequest(http.MethodGet, "/v1/photos", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	items := body["items"].([]any)
	if len(items) != historyLimit {
		t.Fatalf("history len = %d, want %d", len(items), historyLimit)
	}
	first := items[0].(map[string]any)
	if first["id"] != jobID(historyLimit+4) {
		t.Fatalf("first item = %v, want newest %s", first["id"], jobID(historyLimit+4))
	}
}

func TestPhotosUpload(t *testing.T) {
	app, _ := newTestApp(t, 3)
	fs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	app.Store = fs

	img := image.NewRGBA(image.Rect(0, 0, 600, 600))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	req := authedRequest(http.MethodPost, "/v1/photos/upload", buf.String())
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	app.PhotosUpload(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["url"] == "" {
		t.Fatal("response missing url")
	}
	if body["width"].(float64) != 600 || body["height"].(float64) != 600 {
		t.Fatalf("dimensions = %vx%v, want 600x600", body["width"], body["height"])
	}
}

func TestPhotosUploadRejectsSmallImage(t *testing.T) {
	app, _ := newTestApp(t, 3)

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	req := authedRequest(http.MethodPost, "/v1/photos/upload", buf.String())
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	app.PhotosUpload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPhotosBatch(t *testing.T) {
	app, _ := newTestApp(t, 4)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/photos/batch",
		`{"image_urls":["https://cdn.example.com/a.png","https://cdn.example.com/b.png"],"styles":["corporate","casual"]}`)
	app.PhotosBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 4 || body["succeeded"].(float64) != 4 {
		t.Fatalf("total/succeeded = %v/%v, want 4/4", body["total"], body["succeeded"])
	}
	if body["balance"].(float64) != 0 {
		t.Fatalf("balance = %v, want 0", body["balance"])
	}
}

func TestPhotosBatchShortBalance(t *testing.T) {
	app, store := newTestApp(t, 1)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/photos/batch",
		`{"image_urls":["https://cdn.example.com/a.png"],"styles":["corporate","casual"]}`)
	app.PhotosBatch(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	jobs, _ := store.Jobs().ListByUser(context.Background(), testUserID, 10)
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestHandlersRejectMissingUser(t *testing.T) {
	app, _ := newTestApp(t, 3)

	endpoints := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"generate", app.PhotosGenerate},
		{"batch", app.PhotosBatch},
		{"history", app.PhotosHistory},
		{"balance", app.CreditsBalance},
		{"me", app.Me},
	}
	for _, ep := range endpoints {
		t.Run(ep.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ep.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

