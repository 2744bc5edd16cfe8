package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const defaultModelVersion = "tencentarc/photomaker:ddfc2b08d209f9fa8c1eca692712918bd449f695dabb4a958da31802a9570fe4"

// ReplicateOptions configures the Replicate-backed provider.
type ReplicateOptions struct {
	BaseURL      string
	APIToken     string
	ModelVersion string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// ReplicateClient talks to the Replicate predictions API.
type ReplicateClient struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	modelVersion string
	pollInterval time.Duration
}

// NewReplicateClient builds a client with defaults applied.
func NewReplicateClient(opts ReplicateOptions) *ReplicateClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	version := opts.ModelVersion
	if version == "" {
		version = defaultModelVersion
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &ReplicateClient{
		httpClient:   client,
		baseURL:      base,
		token:        strings.TrimSpace(opts.APIToken),
		modelVersion: version,
		pollInterval: poll,
	}
}

type predictionInput struct {
	InputImage         string `json:"input_image"`
	Style              string `json:"style"`
	NumOutputs         int    `json:"num_outputs"`
	StyleStrengthRatio int    `json:"style_strength_ratio"`
	NumInferenceSteps  int    `json:"num_inference_steps"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

// Submit starts a prediction and returns its handle.
func (c *ReplicateClient) Submit(ctx context.Context, imageURL, style string, params StyleParams) (Handle, error) {
	if c.token == "" {
		return Handle{}, errors.New("replicate: API token is missing")
	}
	if strings.TrimSpace(imageURL) == "" {
		return Handle{}, fmt.Errorf("%w: image url required", domain.ErrValidation)
	}
	payload := predictionRequest{
		Version: c.modelVersion,
		Input: predictionInput{
			InputImage:         imageURL,
			Style:              style,
			NumOutputs:         1,
			StyleStrengthRatio: params.StyleStrengthRatio,
			NumInferenceSteps:  params.InferenceSteps,
		},
	}
	var out predictionResponse
	if err := c.post(ctx, "/predictions", payload, &out); err != nil {
		return Handle{}, err
	}
	if out.ID == "" {
		return Handle{}, fmt.Errorf("%w: prediction id missing", domain.ErrProviderFailure)
	}
	return Handle{ID: out.ID}, nil
}

// Await polls the prediction until it reaches a terminal status. It honors
// the context deadline, which the orchestrator uses as the total-wait
// ceiling.
func (c *ReplicateClient) Await(ctx context.Context, h Handle) (Result, error) {
	for {
		var out predictionResponse
		if err := c.get(ctx, "/predictions/"+h.ID, &out); err != nil {
			return Result{}, err
		}
		switch out.Status {
		case "succeeded":
			if len(out.Output) == 0 || out.Output[0] == "" {
				return Result{}, fmt.Errorf("%w: no output from model", domain.ErrProviderFailure)
			}
			return Result{ProcessedURL: out.Output[0]}, nil
		case "failed", "canceled":
			msg := out.Error
			if msg == "" {
				msg = out.Status
			}
			return Result{}, fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *ReplicateClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)
	return c.do(req, out)
}

func (c *ReplicateClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	return c.do(req, out)
}

func (c *ReplicateClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		// Dropped connections and DNS hiccups are worth a retry.
		return Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return Transient(fmt.Errorf("replicate: http %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: replicate http %d", domain.ErrProviderFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}

var _ Provider = (*ReplicateClient)(nil)
