package storage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePutReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.Put(context.Background(), "uploads/u1/photo.png", []byte("data"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://localhost:8080/static/uploads/u1/photo.png" {
		t.Fatalf("unexpected url: %s", url)
	}
	content, err := os.ReadFile(filepath.Join(dir, "uploads", "u1", "photo.png"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(content) != "data" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape.txt", []byte("x"), "text/plain"); err == nil {
		t.Fatalf("expected error for traversal key")
	}
}

func TestThumbnailerFromURL(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer ts.Close()

	store, err := NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tn := NewThumbnailer(store, ts.Client())
	url, err := tn.FromURL(context.Background(), ts.URL+"/out.png", "thumbnails/job-1.jpg")
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if url != "http://localhost/static/thumbnails/job-1.jpg" {
		t.Fatalf("unexpected url: %s", url)
	}
}

func TestScaleToFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 600, 400))
	out := scaleToFit(src, 300)
	if got := out.Bounds(); got.Dx() != 300 || got.Dy() != 200 {
		t.Fatalf("unexpected bounds: %v", got)
	}
	small := image.NewRGBA(image.Rect(0, 0, 100, 80))
	if out := scaleToFit(small, 300); out != small {
		t.Fatalf("small image should pass through unchanged")
	}
}
