package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/food-api/internal/config"
	"github.com/Brownie44l1/food-api/internal/fooddata"
	"github.com/Brownie44l1/food-api/internal/handlers"
	"github.com/Brownie44l1/food-api/internal/history"
	"github.com/Brownie44l1/food-api/internal/logging"
	"github.com/Brownie44l1/food-api/internal/model"
	"github.com/Brownie44l1/food-api/internal/nutrition"
	"github.com/Brownie44l1/food-api/internal/training"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logging.Configure(cfg.LogLevel)

	classifier := model.NewClassifier(cfg.ModelPath, cfg.MetadataPath, cfg.ONNXLibPath)
	defer model.DestroyEnvironment()
	defer classifier.Close()
	if classifier.Available() {
		if err := classifier.Reload(); err != nil {
			slog.Warn("model present but failed to load", "error", err)
		}
	} else {
		slog.Warn("no trained model yet; /classify returns 503 until POST /train", "model", cfg.ModelPath)
	}

	store, err := history.NewSQLiteStorage(cfg.HistoryDBPath)
	if err != nil {
		slog.Error("failed to open history database", "path", cfg.HistoryDBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	primary, fallback := fooddata.DefaultSources(cfg.USDAAPIKey)
	builder := nutrition.NewBuilder(primary, fallback, cfg.EnrichDelay)
	pipeline := training.NewPipeline(cfg.DatasetDir, cfg.DatasetURL, cfg.ModelPath, cfg.MetadataPath,
		training.NewHTTPTrainer(cfg.TrainerURL))

	handler := handlers.NewHandler(classifier, nutrition.NewStore(cfg.NutrientsDBPath), builder, pipeline, store)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"nutrients_db", cfg.NutrientsDBPath,
			"model", cfg.ModelPath,
			"trainer", cfg.TrainerURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
