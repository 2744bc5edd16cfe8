// Package inference defines the boundary to the external AI provider: an
// opaque async submit/await API with tens-of-seconds latency and transient
// failures.
package inference

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
)

// StyleParams are the style-specific model knobs sent with a submission.
type StyleParams struct {
	StyleStrengthRatio int `json:"style_strength_ratio"`
	InferenceSteps     int `json:"num_inference_steps"`
}

// ParamsForStyle maps a style to its tuned model parameters. Unknown styles
// fall back to the corporate preset.
func ParamsForStyle(style string) StyleParams {
	switch style {
	case domain.StyleCreative:
		return StyleParams{StyleStrengthRatio: 30, InferenceSteps: 60}
	case domain.StyleFormal:
		return StyleParams{StyleStrengthRatio: 20, InferenceSteps: 50}
	case domain.StyleCasual:
		return StyleParams{StyleStrengthRatio: 35, InferenceSteps: 55}
	default:
		return StyleParams{StyleStrengthRatio: 25, InferenceSteps: 50}
	}
}

// Handle identifies an in-flight provider prediction.
type Handle struct {
	ID string
}

// Result is a finished prediction.
type Result struct {
	ProcessedURL string
}

// Provider is the contract implemented by inference backends.
type Provider interface {
	Submit(ctx context.Context, imageURL, style string, params StyleParams) (Handle, error)
	Await(ctx context.Context, h Handle) (Result, error)
}

// TransientError marks a provider failure worth retrying (rate limits,
// gateway errors, dropped connections). Anything else is terminal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
