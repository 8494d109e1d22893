package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting shared by the server and the offline commands.
type Config struct {
	Host string
	Port int

	DataDir         string
	ModelPath       string
	MetadataPath    string
	NutrientsDBPath string
	DatasetDir      string
	DatasetURL      string
	HistoryDBPath   string

	ONNXLibPath string
	TrainerURL  string
	USDAAPIKey  string
	LogLevel    string

	// EnrichDelay is the pause between calls to the external food-data APIs.
	EnrichDelay time.Duration
}

const DefaultDatasetURL = "https://data.vision.ee.ethz.ch/cvl/food-101.tar.gz"

// Load reads an optional .env file and then the process environment.
// Paths that are not set explicitly are placed under DataDir.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Host:        getenv("HOST", "0.0.0.0"),
		DataDir:     getenv("DATA_DIR", "data"),
		DatasetURL:  getenv("DATASET_URL", DefaultDatasetURL),
		ONNXLibPath: os.Getenv("ONNX_LIB_PATH"),
		TrainerURL:  getenv("TRAINER_URL", "http://127.0.0.1:8000"),
		USDAAPIKey:  os.Getenv("USDA_API_KEY"),
		LogLevel:    getenv("LOG_LEVEL", "INFO"),
		EnrichDelay: time.Second,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = getenv("FLASK_RUN_PORT", "5000")
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", port, err)
	}
	cfg.Port = p

	if v := os.Getenv("ENRICH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENRICH_DELAY %q: %w", v, err)
		}
		cfg.EnrichDelay = d
	}

	cfg.ModelPath = getenv("MODEL_PATH", filepath.Join(cfg.DataDir, "food_classification_model.onnx"))
	cfg.MetadataPath = getenv("METADATA_PATH", filepath.Join(cfg.DataDir, "class_indices.json"))
	cfg.NutrientsDBPath = getenv("NUTRIENTS_DB_PATH", filepath.Join(cfg.DataDir, "food_nutrients_db.json"))
	cfg.DatasetDir = getenv("DATASET_DIR", filepath.Join(cfg.DataDir, "food_dataset"))
	cfg.HistoryDBPath = getenv("HISTORY_DB_PATH", filepath.Join(cfg.DataDir, "history.db"))

	return cfg, nil
}

// RegisterFlags binds command-line overrides onto fs. Values already loaded
// from the environment become the flag defaults, so flags win.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "Host address")
	fs.IntVar(&c.Port, "port", c.Port, "Port for HTTP server")
	fs.StringVar(&c.ModelPath, "model", c.ModelPath, "ONNX model path")
	fs.StringVar(&c.MetadataPath, "metadata", c.MetadataPath, "Label index path")
	fs.StringVar(&c.NutrientsDBPath, "nutrients-db", c.NutrientsDBPath, "Nutrition JSON document path")
	fs.StringVar(&c.DatasetDir, "dataset-dir", c.DatasetDir, "Training dataset directory")
	fs.StringVar(&c.HistoryDBPath, "history-db", c.HistoryDBPath, "Classification history database path")
	fs.StringVar(&c.TrainerURL, "trainer-url", c.TrainerURL, "Remote trainer base URL")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR")
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
