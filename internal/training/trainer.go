package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Trainer runs a Plan on a deep-learning backend and serves the exported
// model afterwards.
type Trainer interface {
	Train(ctx context.Context, plan *Plan) (*Result, error)
	FetchModel(ctx context.Context, res *Result) (io.ReadCloser, error)
}

// Result is what the backend reports after both phases finished.
type Result struct {
	ModelURL           string             `json:"model_url"`
	EpochsRun          int                `json:"epochs_run"`
	FineTuneEpochsRun  int                `json:"fine_tune_epochs_run"`
	ValidationAccuracy float64            `json:"val_accuracy"`
	ValidationTop3     float64            `json:"val_top_3_accuracy"`
	Metrics            map[string]float64 `json:"metrics,omitempty"`
}

// HTTPTrainer talks to a trainer backend over JSON: POST /train with the
// plan, then GET the returned model URL.
type HTTPTrainer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTrainer(baseURL string) *HTTPTrainer {
	return &HTTPTrainer{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Training runs for a long time; cancellation comes from the context.
		client: &http.Client{},
	}
}

func (c *HTTPTrainer) Train(ctx context.Context, plan *Plan) (*Result, error) {
	body, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create trainer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trainer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("trainer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode trainer response: %w", err)
	}
	if res.ModelURL == "" {
		return nil, errors.New("trainer response has no model_url")
	}
	if res.Metrics == nil {
		res.Metrics = map[string]float64{}
	}
	res.Metrics["wall_seconds"] = time.Since(start).Seconds()
	return &res, nil
}

// FetchModel downloads the exported model. Relative URLs resolve against the
// trainer base URL.
func (c *HTTPTrainer) FetchModel(ctx context.Context, res *Result) (io.ReadCloser, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid trainer url: %w", err)
	}
	ref, err := url.Parse(res.ModelURL)
	if err != nil {
		return nil, fmt.Errorf("invalid model url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create model request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("model download returned status: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
