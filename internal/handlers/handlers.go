package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"

	"github.com/Brownie44l1/food-api/internal/history"
	"github.com/Brownie44l1/food-api/internal/model"
	"github.com/Brownie44l1/food-api/internal/nutrition"
	"github.com/Brownie44l1/food-api/internal/training"
)

// maxBodySize bounds request bodies; base64 photos are the largest payload.
const maxBodySize = 20 << 20

type Classifier interface {
	Predict(img image.Image) (*model.Prediction, error)
	Reload() error
}

type NutritionBuilder interface {
	BuildEnriched(ctx context.Context) (map[string]nutrition.Record, error)
}

type Pipeline interface {
	Run(ctx context.Context, opts training.Options) (*training.Report, error)
	PrepareDataset(ctx context.Context, datasetURL string) (*training.DatasetReport, error)
}

type History interface {
	Record(ctx context.Context, e *history.Entry) error
	Recent(ctx context.Context, limit int) ([]*history.Entry, error)
}

type Handler struct {
	classifier Classifier
	store      *nutrition.Store
	builder    NutritionBuilder
	pipeline   Pipeline
	history    History
}

func NewHandler(classifier Classifier, store *nutrition.Store, builder NutritionBuilder, pipeline Pipeline, history History) *Handler {
	return &Handler{
		classifier: classifier,
		store:      store,
		builder:    builder,
		pipeline:   pipeline,
		history:    history,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeOptional decodes a JSON body into v. An empty body leaves v at its
// defaults.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
