// Prints a performance and risk report over the stored portfolio history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"pnfTracker/config"
	"pnfTracker/internal/adapters/logger"
	"pnfTracker/internal/adapters/sqlite"
	"pnfTracker/internal/analytics"
	"pnfTracker/internal/app"
)

func main() {
	filter := flag.String("filter", "all", "closed-position window: all, 1m, 3m, 6m, 1y")
	flag.Parse()

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

	settings := session.Settings()
	report := analytics.Analyze(session.Positions(), session.ClosedPositions(), &settings,
		analytics.TimeFilter(*filter), time.Now())

	fmt.Printf("Performance report (window: %s)\n", *filter)
	fmt.Printf("  Invested %.2f, unrealized %.2f, realized %.2f, overall ROI %.2f%%\n",
		report.TotalInvested, report.UnrealizedPNL, report.RealizedPNL, report.OverallROI)
	fmt.Printf("  Trades %d (W %d / L %d), win rate %.1f%%, profit factor %.2f\n",
		report.Stats.TotalTrades, report.Stats.Winners, report.Stats.Losers,
		report.Stats.WinRate, report.Stats.ProfitFactor)
	fmt.Printf("  Avg win %.2f, avg loss %.2f\n", report.Stats.AverageWin, report.Stats.AverageLoss)

	fmt.Println("  Top winners:")
	for _, p := range report.TopWinners {
		fmt.Printf("    %-12s %+.2f%% (%s)\n", p.Symbol, p.Performance, positionState(p.Closed))
	}
	fmt.Println("  Top losers:")
	for _, p := range report.TopLosers {
		fmt.Printf("    %-12s %+.2f%% (%s)\n", p.Symbol, p.Performance, positionState(p.Closed))
	}

	fmt.Println("  Composition:")
	for _, a := range report.Composition {
		fmt.Printf("    %-12s %6.2f%%  (%.2f)\n", a.Symbol, a.AllocationPct, a.Invested)
	}
	fmt.Printf("  Risk: max allocation %.1f%%, concentration index %.0f, utilization %.1f%%\n",
		report.Risk.MaxAllocationPct, report.Risk.HerfindahlIndex, report.Risk.UtilizationPct)
}

func positionState(closed bool) string {
	if closed {
		return "closed"
	}
	return "active"
}
