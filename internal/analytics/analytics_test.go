package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pnfTracker/internal/domain"
)

func activePosition(symbol string, invested, pnl float64) *domain.Position {
	pos := &domain.Position{
		Symbol:          symbol,
		TotalInvested:   invested,
		CurrentQuantity: 1,
	}
	pos.PNL = pnl
	if invested != 0 {
		pos.PNLPercent = pnl / invested * 100
	}
	return pos
}

func closedPosition(symbol string, invested, realized float64, closedAt time.Time) *domain.ClosedPosition {
	return &domain.ClosedPosition{
		Symbol:             symbol,
		TotalInvested:      invested,
		RealizedPNL:        realized,
		RealizedPNLPercent: realized / invested * 100,
		ClosedAt:           closedAt,
	}
}

func TestAnalyzeWinLossStats(t *testing.T) {
	now := time.Now()
	closed := []*domain.ClosedPosition{
		closedPosition("A", 10000, 2000, now),
		closedPosition("B", 10000, 1000, now),
		closedPosition("C", 10000, -1500, now),
	}
	settings := &domain.Settings{TotalCapital: 1200000, Buffer: 200000, MaxAllocation: 0.25}

	report := Analyze(nil, closed, settings, FilterAll, now)

	stats := report.Stats
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.Winners)
	assert.Equal(t, 1, stats.Losers)
	assert.InDelta(t, 100.0*2/3, stats.WinRate, 1e-9)
	assert.InDelta(t, 3000, stats.TotalWinnings, 1e-9)
	assert.InDelta(t, 1500, stats.TotalLosses, 1e-9)
	assert.InDelta(t, 1500, stats.AverageWin, 1e-9)
	assert.InDelta(t, 1500, stats.AverageLoss, 1e-9)
	assert.InDelta(t, 2, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 1500, report.RealizedPNL, 1e-9)
	assert.InDelta(t, 1500.0/30000*100, report.OverallROI, 1e-9)
}

func TestAnalyzeTimeFilter(t *testing.T) {
	now := time.Now()
	closed := []*domain.ClosedPosition{
		closedPosition("RECENT", 1000, 100, now.AddDate(0, 0, -10)),
		closedPosition("OLD", 1000, -100, now.AddDate(0, -8, 0)),
	}
	settings := &domain.Settings{TotalCapital: 1000000, MaxAllocation: 0.25}

	report := Analyze(nil, closed, settings, FilterLastMonth, now)
	assert.Equal(t, 1, report.Stats.TotalTrades)
	assert.Equal(t, 1, report.Stats.Winners)
	// Realized PnL stays a cross-history total regardless of the filter.
	assert.InDelta(t, 0, report.RealizedPNL, 1e-9)

	report = Analyze(nil, closed, settings, FilterLastYear, now)
	assert.Equal(t, 2, report.Stats.TotalTrades)
}

func TestAnalyzeCompositionAndRisk(t *testing.T) {
	active := []*domain.Position{
		activePosition("BIG", 150000, 0),
		activePosition("SMALL", 50000, 0),
	}
	settings := &domain.Settings{TotalCapital: 1200000, Buffer: 200000, MaxAllocation: 0.25}

	report := Analyze(active, nil, settings, FilterAll, time.Now())

	require.Len(t, report.Composition, 2)
	assert.Equal(t, "BIG", report.Composition[0].Symbol)
	assert.InDelta(t, 75, report.Composition[0].AllocationPct, 1e-9)
	assert.InDelta(t, 25, report.Composition[1].AllocationPct, 1e-9)

	assert.InDelta(t, 75, report.Risk.MaxAllocationPct, 1e-9)
	assert.InDelta(t, 75*75+25*25, report.Risk.HerfindahlIndex, 1e-9)
	assert.InDelta(t, 20, report.Risk.UtilizationPct, 1e-9) // 200000 of 1000000
}

func TestAnalyzeTopPerformers(t *testing.T) {
	now := time.Now()
	active := []*domain.Position{
		activePosition("A", 10000, 3000),  // +30%
		activePosition("B", 10000, 500),   // +5%
		activePosition("C", 10000, -2000), // -20%
	}
	closed := []*domain.ClosedPosition{
		closedPosition("D", 10000, 4000, now), // +40%
		closedPosition("E", 10000, 1000, now), // +10%
		closedPosition("F", 10000, -500, now), // -5%
	}
	settings := &domain.Settings{TotalCapital: 1000000, MaxAllocation: 0.25}

	report := Analyze(active, closed, settings, FilterAll, now)

	require.Len(t, report.TopWinners, 3)
	assert.Equal(t, "D", report.TopWinners[0].Symbol)
	assert.Equal(t, "A", report.TopWinners[1].Symbol)
	assert.Equal(t, "E", report.TopWinners[2].Symbol)
	assert.True(t, report.TopWinners[0].Closed)

	require.Len(t, report.TopLosers, 2)
	assert.Equal(t, "C", report.TopLosers[0].Symbol)
	assert.Equal(t, "F", report.TopLosers[1].Symbol)
}

func TestAnalyzeEmptyPortfolio(t *testing.T) {
	settings := &domain.Settings{TotalCapital: 1000000, MaxAllocation: 0.25}
	report := Analyze(nil, nil, settings, FilterAll, time.Now())

	assert.Zero(t, report.TotalInvested)
	assert.Zero(t, report.OverallROI)
	assert.Zero(t, report.Stats.TotalTrades)
	assert.Empty(t, report.TopWinners)
	assert.Empty(t, report.Composition)
}
