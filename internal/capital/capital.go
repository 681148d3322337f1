// Package capital derives trading capital, tranche size and allocation
// ceilings from account settings. All functions are pure.
package capital

import (
	"math"

	"pnfTracker/internal/domain"
)

// PyramidCeilingMultiplier caps a position's cumulative cost basis at 250%
// of its base lot. Fixed by the methodology, not configurable.
const PyramidCeilingMultiplier = 2.5

// TradingCapital returns the capital available for position taking.
func TradingCapital(s *domain.Settings) float64 {
	return s.TotalCapital - s.Buffer
}

// DerivedTrancheSize computes the fixed capital unit for one new position.
func DerivedTrancheSize(s *domain.Settings) float64 {
	if s.MaxStocks <= 0 {
		return 0
	}
	return math.Floor(TradingCapital(s) / float64(s.MaxStocks))
}

// Recalculate writes the derived tranche size back into the settings.
// Must be called whenever TotalCapital, Buffer or MaxStocks changes; the
// tranche is an eagerly maintained derived field, not a cache.
func Recalculate(s *domain.Settings) {
	s.TrancheSize = DerivedTrancheSize(s)
}

// MaxAllowedPerPosition returns the per-position investment ceiling.
func MaxAllowedPerPosition(s *domain.Settings) float64 {
	return TradingCapital(s) * s.MaxAllocation
}

// MaxPyramidCeiling returns the cumulative size ceiling for one position.
func MaxPyramidCeiling(p *domain.Position) float64 {
	return p.BaseSize * PyramidCeilingMultiplier
}
