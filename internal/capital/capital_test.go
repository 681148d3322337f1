package capital

import (
	"testing"

	"pnfTracker/internal/domain"
)

func TestDerivedTrancheSize(t *testing.T) {
	settings := &domain.Settings{
		TotalCapital: 1200000,
		Buffer:       200000,
		MaxStocks:    8,
	}

	if got := TradingCapital(settings); got != 1000000 {
		t.Errorf("Expected trading capital 1000000, got %f", got)
	}
	if got := DerivedTrancheSize(settings); got != 125000 {
		t.Errorf("Expected tranche size 125000, got %f", got)
	}

	// Non-divisible capital floors
	settings.MaxStocks = 7
	if got := DerivedTrancheSize(settings); got != 142857 {
		t.Errorf("Expected tranche size 142857, got %f", got)
	}

	settings.MaxStocks = 0
	if got := DerivedTrancheSize(settings); got != 0 {
		t.Errorf("Expected tranche size 0 for zero max stocks, got %f", got)
	}
}

func TestRecalculate(t *testing.T) {
	settings := &domain.Settings{
		TotalCapital: 1200000,
		Buffer:       200000,
		MaxStocks:    8,
		TrancheSize:  99, // stale value must be overwritten
	}
	Recalculate(settings)
	if settings.TrancheSize != 125000 {
		t.Errorf("Expected recalculated tranche 125000, got %f", settings.TrancheSize)
	}
}

func TestMaxAllowedPerPosition(t *testing.T) {
	settings := &domain.Settings{
		TotalCapital:  1200000,
		Buffer:        200000,
		MaxAllocation: 0.25,
	}
	if got := MaxAllowedPerPosition(settings); got != 250000 {
		t.Errorf("Expected max allowed 250000, got %f", got)
	}
}

func TestMaxPyramidCeiling(t *testing.T) {
	pos := &domain.Position{BaseSize: 100000}
	if got := MaxPyramidCeiling(pos); got != 250000 {
		t.Errorf("Expected pyramid ceiling 250000, got %f", got)
	}
}
