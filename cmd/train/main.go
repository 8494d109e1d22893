// Command train prepares the dataset and runs the remote training job,
// leaving the ONNX model and its label index on disk.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/food-api/internal/config"
	"github.com/Brownie44l1/food-api/internal/logging"
	"github.com/Brownie44l1/food-api/internal/training"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	datasetURL := flag.String("dataset-url", cfg.DatasetURL, "Dataset archive URL")
	epochs := flag.Int("epochs", training.DefaultEpochs, "Head training epochs")
	fineTune := flag.Int("fine-tune-epochs", training.DefaultFineTuneEpochs, "Fine-tuning epochs")
	prepareOnly := flag.Bool("prepare-only", false, "Download and organize the dataset without training")
	flag.Parse()

	logging.Configure(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := training.NewPipeline(cfg.DatasetDir, *datasetURL, cfg.ModelPath, cfg.MetadataPath,
		training.NewHTTPTrainer(cfg.TrainerURL))

	if *prepareOnly {
		report, err := pipeline.PrepareDataset(ctx, "")
		if err != nil {
			slog.Error("dataset preparation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("dataset ready",
			"classes", len(report.Classes),
			"train_images", report.TrainImages,
			"validation_images", report.ValidationImages,
			"placeholder", report.Placeholder,
		)
		return
	}

	report, err := pipeline.Run(ctx, training.Options{Epochs: *epochs, FineTuneEpochs: *fineTune})
	if errors.Is(err, training.ErrDatasetMissing) {
		slog.Error("no training images; check the dataset URL or place the extracted archive next to the dataset dir", "error", err)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
	if report.Skipped {
		slog.Info("model already exists; delete it to retrain", "model", report.ModelPath)
		return
	}
	slog.Info("training complete",
		"model", report.ModelPath,
		"metadata", report.MetadataPath,
		"classes", report.Classes,
		"duration", report.Duration,
	)
}
