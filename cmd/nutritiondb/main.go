// Command nutritiondb writes the nutrition lookup document used by the
// classification server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/food-api/internal/config"
	"github.com/Brownie44l1/food-api/internal/fooddata"
	"github.com/Brownie44l1/food-api/internal/logging"
	"github.com/Brownie44l1/food-api/internal/nutrition"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	full := flag.Bool("full", false, "Query the food-data APIs for every Food-101 label instead of writing the seed")
	flag.StringVar(&cfg.NutrientsDBPath, "out", cfg.NutrientsDBPath, "Output path")
	flag.DurationVar(&cfg.EnrichDelay, "delay", cfg.EnrichDelay, "Pause between API calls")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR")
	flag.Parse()

	logging.Configure(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := nutrition.BuildSeed()
	if *full {
		if cfg.USDAAPIKey == "" {
			slog.Warn("USDA_API_KEY not set; using Open Food Facts only")
		}
		primary, fallback := fooddata.DefaultSources(cfg.USDAAPIKey)
		db, err = nutrition.NewBuilder(primary, fallback, cfg.EnrichDelay).BuildEnriched(ctx)
		if err != nil {
			slog.Error("enriched build failed", "error", err)
			os.Exit(1)
		}
	}

	if err := nutrition.NewStore(cfg.NutrientsDBPath).Save(ctx, db); err != nil {
		slog.Error("failed to save nutrients db", "error", err)
		os.Exit(1)
	}
	slog.Info("nutrients database written", "path", cfg.NutrientsDBPath, "items", len(db))
}
