package orchestrator

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"server/internal/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateSubmission(t *testing.T) {
	if err := ValidateSubmission("https://example.com/in.png", domain.StyleCorporate); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
	cases := []struct {
		name, url, style string
	}{
		{"unknown style", "https://example.com/in.png", "anime"},
		{"empty style", "https://example.com/in.png", ""},
		{"bad url", "://nope", domain.StyleFormal},
		{"no scheme", "example.com/in.png", domain.StyleFormal},
		{"file scheme", "file:///etc/passwd", domain.StyleFormal},
	}
	for _, tc := range cases {
		if err := ValidateSubmission(tc.url, tc.style); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestValidateImage(t *testing.T) {
	w, h, err := ValidateImage(pngBytes(t, 512, 600), "image/png")
	if err != nil {
		t.Fatalf("valid image rejected: %v", err)
	}
	if w != 512 || h != 600 {
		t.Fatalf("dimensions = %dx%d, want 512x600", w, h)
	}
}

func TestValidateImageRejectsNonImage(t *testing.T) {
	if _, _, err := ValidateImage([]byte("plain text"), "text/plain"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, _, err := ValidateImage([]byte("not actually an image"), "image/png"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for undecodable bytes, got %v", err)
	}
}

func TestValidateImageRejectsSmallDimensions(t *testing.T) {
	if _, _, err := ValidateImage(pngBytes(t, 256, 256), "image/png"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for small image, got %v", err)
	}
}

func TestValidateImageRejectsOversizedPayload(t *testing.T) {
	data := make([]byte, MaxSourceBytes+1)
	if _, _, err := ValidateImage(data, "image/png"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized payload, got %v", err)
	}
}
