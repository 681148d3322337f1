package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"pnfTracker/config"
	"pnfTracker/internal/adapters/logger"
	"pnfTracker/internal/adapters/sqlite"
	"pnfTracker/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// 4. Load the session and print the portfolio summary
	session, err := app.NewSession(cfg, appLogger, repo)
	if err != nil {
		log.Fatalf("FATAL: Failed to create session: %v", err)
	}
	if err := session.Load(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load session")
		log.Fatalf("FATAL: Failed to load session: %v", err)
	}

	settings := session.Settings()
	summary := session.Summarize()

	fmt.Printf("Point & Figure Portfolio (account %s)\n", cfg.AccountID)
	fmt.Printf("  Trading capital: %12.2f (tranche %.2f, max %d stocks)\n",
		settings.TotalCapital-settings.Buffer, settings.TrancheSize, settings.MaxStocks)
	fmt.Printf("  Invested:        %12.2f (%.1f%% utilized, %d slots free)\n",
		summary.TotalInvested, summary.UtilizationPct, summary.MaxNewPositions)
	fmt.Printf("  Unrealized PnL:  %12.2f\n", summary.UnrealizedPNL)
	fmt.Printf("  Realized PnL:    %12.2f\n", summary.RealizedPNL)
	fmt.Printf("  Total ROI:       %11.2f%%\n", summary.TotalROI)
	fmt.Println()

	positions := session.Positions()
	if len(positions) == 0 {
		fmt.Println("No active positions.")
	}
	for _, pos := range positions {
		fmt.Printf("  %-12s qty %6d  avg %10.2f  ltp %10.2f  invested %12.2f  pyramids %d/%d  pnl %12.2f (%.2f%%)\n",
			pos.Symbol, pos.CurrentQuantity, pos.AvgCost(), pos.CurrentPrice,
			pos.TotalInvested, pos.PyramidCount, pos.MaxPyramidCount, pos.PNL, pos.PNLPercent)
	}

	if err := session.Flush(ctx); err != nil {
		appLogger.Error(ctx, err, "Failed to flush session state")
	}
}
