// Imports a delimited portfolio export (one row per historical fill) into
// the store, replacing the account's entire active set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"pnfTracker/config"
	"pnfTracker/internal/adapters/logger"
	"pnfTracker/internal/adapters/sqlite"
	"pnfTracker/internal/app"
)

func main() {
	file := flag.String("file", "", "path to the delimited export (required)")
	flag.Parse()
	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	session, err := app.NewSession(cfg, appLogger, repo)
	if err != nil {
		log.Fatalf("FATAL: Failed to create session: %v", err)
	}
	if err := session.Load(ctx); err != nil {
		log.Fatalf("FATAL: Failed to load session: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("FATAL: Failed to read %s: %v", *file, err)
	}

	result, err := session.ImportSnapshot(ctx, string(data))
	if err != nil {
		log.Fatalf("FATAL: Import rejected: %v", err)
	}
	if err := session.Flush(ctx); err != nil {
		log.Fatalf("FATAL: Failed to persist imported positions: %v", err)
	}

	fmt.Printf("Imported %d positions (%d malformed rows skipped)\n", len(result.Positions), result.SkippedRows)
	for _, pos := range result.Positions {
		fmt.Printf("  %-12s qty %6d  avg %10.2f  ltp %10.2f  pyramids %d\n",
			pos.Symbol, pos.CurrentQuantity, pos.AvgCost(), pos.CurrentPrice, pos.PyramidCount)
	}
}
