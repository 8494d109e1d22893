package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/Brownie44l1/food-api/internal/nutrition"
	"github.com/Brownie44l1/food-api/internal/training"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	sampleItemCount     = 5
)

type CreateNutrientsDBRequest struct {
	UseFullDB bool `json:"use_full_db"`
}

type CreateNutrientsDBResponse struct {
	Message        string   `json:"message"`
	FoodItemsCount int      `json:"food_items_count"`
	SampleItems    []string `json:"sample_items"`
}

// CreateNutrientsDB rebuilds the nutrition document, either from the
// hardcoded seed or by querying the food-data APIs for every known label.
func (h *Handler) CreateNutrientsDB(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req CreateNutrientsDBRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var (
		db  map[string]nutrition.Record
		err error
	)
	if req.UseFullDB {
		if h.builder == nil {
			writeError(w, http.StatusServiceUnavailable, "enriched nutrients database is not configured")
			return
		}
		db, err = h.builder.BuildEnriched(r.Context())
		if err != nil {
			slog.Error("enriched nutrients build failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		db = nutrition.BuildSeed()
	}

	if err := h.store.Save(r.Context(), db); err != nil {
		slog.Error("failed to save nutrients db", "path", h.store.Path(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	labels := make([]string, 0, len(db))
	for label := range db {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if len(labels) > sampleItemCount {
		labels = labels[:sampleItemCount]
	}

	message := "Sample nutrients database created successfully"
	if req.UseFullDB {
		message = "Enhanced nutrients database created successfully"
	}

	slog.Info("nutrients db created", "path", h.store.Path(), "items", len(db), "enriched", req.UseFullDB)
	writeJSON(w, http.StatusOK, CreateNutrientsDBResponse{
		Message:        message,
		FoodItemsCount: len(db),
		SampleItems:    labels,
	})
}

type PrepareDatasetRequest struct {
	DatasetURL string `json:"dataset_url"`
}

func (h *Handler) PrepareDataset(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req PrepareDatasetRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	report, err := h.pipeline.PrepareDataset(r.Context(), req.DatasetURL)
	if err != nil {
		slog.Error("dataset preparation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type TrainRequest struct {
	DatasetURL     string `json:"dataset_url"`
	Epochs         *int   `json:"epochs"`
	FineTuneEpochs *int   `json:"fine_tune_epochs"`
}

func (req TrainRequest) options() (training.Options, error) {
	opts := training.Options{
		DatasetURL:     req.DatasetURL,
		Epochs:         training.DefaultEpochs,
		FineTuneEpochs: training.DefaultFineTuneEpochs,
	}
	if req.Epochs != nil {
		if *req.Epochs < 1 {
			return opts, errors.New("epochs must be at least 1")
		}
		opts.Epochs = *req.Epochs
	}
	if req.FineTuneEpochs != nil {
		if *req.FineTuneEpochs < 0 {
			return opts, errors.New("fine_tune_epochs must not be negative")
		}
		opts.FineTuneEpochs = *req.FineTuneEpochs
	}
	return opts, nil
}

// Train runs the full pipeline and reloads the classifier when a new model
// was written.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req TrainRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.pipeline.Run(r.Context(), opts)
	if errors.Is(err, training.ErrDatasetMissing) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("training failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !report.Skipped {
		if err := h.classifier.Reload(); err != nil {
			slog.Error("failed to load trained model", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	slog.Info("training finished", "skipped", report.Skipped, "classes", report.Classes, "duration", report.Duration)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
