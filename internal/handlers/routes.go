package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routePaths are the registered endpoints. Metrics label any other path as
// otherPath to keep series bounded.
var routePaths = map[string]bool{
	"/health":              true,
	"/classify":            true,
	"/create_nutrients_db": true,
	"/prepare_dataset":     true,
	"/train":               true,
	"/history":             true,
	"/metrics":             true,
}

const otherPath = "other"

func metricPath(path string) string {
	if routePaths[path] {
		return path
	}
	return otherPath
}

// Routes builds the service mux. Every endpoint gets CORS headers; the whole
// mux is wrapped with panic recovery and the access log.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", enableCORS(h.Health))
	mux.HandleFunc("/classify", enableCORS(h.Classify))
	mux.HandleFunc("/create_nutrients_db", enableCORS(h.CreateNutrientsDB))
	mux.HandleFunc("/prepare_dataset", enableCORS(h.PrepareDataset))
	mux.HandleFunc("/train", enableCORS(h.Train))
	mux.HandleFunc("/history", enableCORS(h.History))
	mux.Handle("/metrics", promhttp.Handler())

	return logMiddleware(recoverMiddleware(mux))
}
