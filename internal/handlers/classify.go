package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Brownie44l1/food-api/internal/history"
	"github.com/Brownie44l1/food-api/internal/metrics"
	"github.com/Brownie44l1/food-api/internal/model"
	"github.com/Brownie44l1/food-api/internal/nutrition"
	"github.com/Brownie44l1/food-api/internal/payload"
)

// UnrecognizedLabel is reported when the payload is not a decodable image.
const UnrecognizedLabel = "unrecognized"

type ClassifyRequest struct {
	Image *string `json:"image"`
}

// ClassificationResponse has the same keys whether or not the label has a
// nutrition record.
type ClassificationResponse struct {
	Food           string             `json:"food"`
	Confidence     float64            `json:"confidence"`
	Calories       float64            `json:"calories"`
	Nutrients      map[string]float64 `json:"nutrients"`
	Description    string             `json:"description"`
	GlycemicIndex  int                `json:"glycemic_index"`
	PortionSize    string             `json:"portion_size"`
	DiabetesImpact string             `json:"diabetes_impact"`
}

func newClassificationResponse(rec nutrition.Record, confidence float64) ClassificationResponse {
	return ClassificationResponse{
		Food:           rec.Label,
		Confidence:     confidence,
		Calories:       rec.Calories,
		Nutrients:      rec.Nutrients,
		Description:    rec.Description,
		GlycemicIndex:  rec.GlycemicIndex,
		PortionSize:    rec.PortionSize,
		DiabetesImpact: rec.DiabetesImpact,
	}
}

func unrecognizedResponse() ClassificationResponse {
	return newClassificationResponse(nutrition.Lookup(nil, UnrecognizedLabel), 0)
}

// Classify decodes a base64 image, predicts its label and joins it with the
// nutrition table.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Image == nil || *req.Image == "" {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	log := slog.With("payload_len", len(*req.Image))

	img, format, err := payload.DecodeImage(*req.Image)
	if err != nil {
		log.Info("image payload not decodable, returning unrecognized", "error", err)
		metrics.Classifications.WithLabelValues(metrics.OutcomeUnrecognized).Inc()
		writeJSON(w, http.StatusOK, unrecognizedResponse())
		return
	}
	log.Debug("image decoded", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	pred, err := h.classifier.Predict(img)
	if errors.Is(err, model.ErrUnavailable) {
		log.Warn("classification requested without a model", "error", err)
		metrics.Classifications.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		writeError(w, http.StatusServiceUnavailable, "model not available; run training first (POST /train)")
		return
	}
	if err != nil {
		log.Error("prediction failed", "error", err)
		metrics.Classifications.WithLabelValues(metrics.OutcomeError).Inc()
		writeError(w, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	db, err := h.store.Load(r.Context())
	if err != nil {
		log.Error("failed to load nutrients db", "error", err)
		metrics.Classifications.WithLabelValues(metrics.OutcomeError).Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := newClassificationResponse(nutrition.Lookup(db, pred.Label), float64(pred.Confidence))
	metrics.Classifications.WithLabelValues(metrics.OutcomePredicted).Inc()
	log.Info("image classified", "food", resp.Food, "confidence", resp.Confidence)

	if h.history != nil {
		entry := &history.Entry{
			Food:          resp.Food,
			Confidence:    resp.Confidence,
			Calories:      resp.Calories,
			GlycemicIndex: resp.GlycemicIndex,
		}
		if err := h.history.Record(r.Context(), entry); err != nil {
			log.Warn("failed to record classification", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
