package orchestrator

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	"server/internal/domain"
)

// Source image constraints enforced before any credit is touched.
const (
	MaxSourceBytes = 10 << 20
	MinWidth       = 512
	MinHeight      = 512
)

// ValidateSubmission checks the submit arguments. Failures carry
// domain.ErrValidation and imply no side effects were taken.
func ValidateSubmission(sourceURL, style string) error {
	if !domain.ValidStyle(style) {
		return fmt.Errorf("%w: style must be one of corporate, creative, formal, casual", domain.ErrValidation)
	}
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: source image url is invalid", domain.ErrValidation)
	}
	return nil
}

// ValidateImage checks an uploaded source image: content type, byte-size
// ceiling and minimum pixel dimensions. It returns the decoded dimensions.
func ValidateImage(data []byte, contentType string) (int, int, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return 0, 0, fmt.Errorf("%w: file must be an image", domain.ErrValidation)
	}
	if len(data) > MaxSourceBytes {
		return 0, 0, fmt.Errorf("%w: file size must be less than 10MB", domain.ErrValidation)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid image file", domain.ErrValidation)
	}
	if cfg.Width < MinWidth || cfg.Height < MinHeight {
		return 0, 0, fmt.Errorf("%w: image must be at least %dx%d pixels", domain.ErrValidation, MinWidth, MinHeight)
	}
	return cfg.Width, cfg.Height, nil
}
