// Package training prepares the food image dataset and drives model
// training on a remote deep-learning backend.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Brownie44l1/food-api/internal/model"
)

// ErrDatasetMissing means no images were available to train on.
var ErrDatasetMissing = errors.New("dataset not available")

// Pipeline owns the on-disk layout: the archive and its extracted root live
// in WorkDir, the train/validation trees under DatasetDir.
type Pipeline struct {
	WorkDir      string
	DatasetDir   string
	DatasetURL   string
	ModelPath    string
	MetadataPath string

	TrainPerClass      int
	ValidationPerClass int
	Workers            int
	MaxRetries         uint64
	RetryBase          time.Duration

	trainer Trainer
	client  *http.Client
}

func NewPipeline(datasetDir, datasetURL, modelPath, metadataPath string, trainer Trainer) *Pipeline {
	return &Pipeline{
		WorkDir:            filepath.Dir(datasetDir),
		DatasetDir:         datasetDir,
		DatasetURL:         datasetURL,
		ModelPath:          modelPath,
		MetadataPath:       metadataPath,
		TrainPerClass:      DefaultTrainPerClass,
		ValidationPerClass: DefaultValidationPerClass,
		Workers:            8,
		MaxRetries:         5,
		RetryBase:          time.Second,
		trainer:            trainer,
		client:             &http.Client{},
	}
}

func (p *Pipeline) TrainDir() string {
	return filepath.Join(p.DatasetDir, "train")
}

func (p *Pipeline) ValidationDir() string {
	return filepath.Join(p.DatasetDir, "validation")
}

// DatasetReport describes what PrepareDataset did.
type DatasetReport struct {
	DatasetURL string `json:"dataset_url"`
	Archive    string `json:"archive"`
	Downloaded bool   `json:"downloaded"`
	Extracted  bool   `json:"extracted"`
	OrganizeResult
}

// PrepareDataset downloads and extracts the archive at datasetURL (or the
// pipeline default when empty) unless a local copy exists, then builds the
// train/validation trees.
func (p *Pipeline) PrepareDataset(ctx context.Context, datasetURL string) (*DatasetReport, error) {
	if datasetURL == "" {
		datasetURL = p.DatasetURL
	}
	name, err := archiveName(datasetURL)
	if err != nil {
		return nil, err
	}
	report := &DatasetReport{
		DatasetURL: datasetURL,
		Archive:    filepath.Join(p.WorkDir, name),
	}
	rawRoot := filepath.Join(p.WorkDir, datasetRootName(name))

	if _, err := os.Stat(rawRoot); errors.Is(err, os.ErrNotExist) {
		report.Downloaded, err = p.download(ctx, datasetURL, report.Archive)
		if err != nil {
			return nil, err
		}
		slog.Info("extracting dataset", "archive", report.Archive, "dest", p.WorkDir)
		if err := extract(ctx, report.Archive, p.WorkDir); err != nil {
			return nil, fmt.Errorf("failed to extract dataset: %w", err)
		}
		report.Extracted = true
	} else {
		slog.Info("dataset already extracted", "path", rawRoot)
	}

	org, err := p.organize(ctx, rawRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to organize dataset: %w", err)
	}
	report.OrganizeResult = *org
	return report, nil
}

// Options are the per-run training knobs. A zero Epochs or a negative
// FineTuneEpochs selects the default; zero FineTuneEpochs skips fine-tuning.
type Options struct {
	DatasetURL     string
	Epochs         int
	FineTuneEpochs int
}

// Report summarizes a pipeline run. Skipped is set when the artifacts
// already existed and nothing was done.
type Report struct {
	Skipped      bool           `json:"skipped"`
	Dataset      *DatasetReport `json:"dataset,omitempty"`
	Classes      int            `json:"classes"`
	Result       *Result        `json:"result,omitempty"`
	ModelPath    string         `json:"model_path"`
	MetadataPath string         `json:"metadata_path"`
	Duration     time.Duration  `json:"duration_ns"`
}

// Run executes the whole job. It is a no-op while both the model and its
// label index exist; delete them to retrain.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{ModelPath: p.ModelPath, MetadataPath: p.MetadataPath}

	if model.ArtifactsExist(p.ModelPath, p.MetadataPath) {
		slog.Info("model and label index already exist, skipping training",
			"model", p.ModelPath, "metadata", p.MetadataPath)
		report.Skipped = true
		return report, nil
	}

	if opts.Epochs == 0 {
		opts.Epochs = DefaultEpochs
	}
	if opts.FineTuneEpochs < 0 {
		opts.FineTuneEpochs = DefaultFineTuneEpochs
	}

	ds, err := p.PrepareDataset(ctx, opts.DatasetURL)
	if err != nil {
		return nil, err
	}
	report.Dataset = ds
	if ds.Placeholder || ds.TrainImages == 0 {
		return nil, fmt.Errorf("%w: no training images under %s", ErrDatasetMissing, p.TrainDir())
	}

	classes, err := DiscoverClasses(p.TrainDir())
	if err != nil {
		return nil, err
	}
	report.Classes = len(classes)

	plan := NewPlan(classes, absPath(p.TrainDir()), absPath(p.ValidationDir()), opts.Epochs, opts.FineTuneEpochs)
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training plan: %w", err)
	}

	slog.Info("starting model training", "classes", len(classes), "epochs", opts.Epochs, "fine_tune_epochs", opts.FineTuneEpochs)
	res, err := p.trainer.Train(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	report.Result = res

	if err := p.saveModel(ctx, res); err != nil {
		return nil, err
	}
	if err := model.NewMetadata(classes, plan.ImageSize).Save(p.MetadataPath); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	slog.Info("model training finished", "model", p.ModelPath, "val_accuracy", res.ValidationAccuracy,
		"minutes", fmt.Sprintf("%.2f", report.Duration.Minutes()))
	return report, nil
}

func (p *Pipeline) saveModel(ctx context.Context, res *Result) error {
	rc, err := p.trainer.FetchModel(ctx, res)
	if err != nil {
		return fmt.Errorf("failed to fetch model: %w", err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(p.ModelPath), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	return writeAtomic(p.ModelPath, rc)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
