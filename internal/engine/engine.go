// Package engine implements the position and close engines: opening,
// pyramiding, quantity corrections, mark-to-market and liquidation, with
// the allocation and pyramid ceilings enforced on every mutation that
// commits new capital. All operations are synchronous and all-or-nothing:
// a rejected operation leaves its inputs untouched.
package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"pnfTracker/internal/capital"
	"pnfTracker/internal/domain"
	"pnfTracker/internal/ports"
)

// OpenPosition validates and creates a new position from a first fill.
// Constraints are checked in order; the first failure wins.
func OpenPosition(settings *domain.Settings, active []*domain.Position, symbol string, price float64, quantity int64) (*domain.Position, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", ports.ErrValidation)
	}
	if price <= 0 {
		return nil, fmt.Errorf("price %.2f must be positive: %w", price, ports.ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity %d must be positive: %w", quantity, ports.ErrValidation)
	}

	if len(active) >= settings.MaxStocks {
		return nil, fmt.Errorf("portfolio already holds %d of %d stocks: %w", len(active), settings.MaxStocks, ports.ErrPortfolioFull)
	}

	size := float64(quantity) * price
	if maxAllowed := capital.MaxAllowedPerPosition(settings); size > maxAllowed {
		return nil, fmt.Errorf("position size %.2f exceeds allocation limit %.2f: %w", size, maxAllowed, ports.ErrAllocationLimit)
	}
	// Base size is not known yet at inception, so the tranche stands in for it.
	if ceiling := settings.TrancheSize * capital.PyramidCeilingMultiplier; size > ceiling {
		return nil, fmt.Errorf("position size %.2f exceeds pyramid ceiling %.2f: %w", size, ceiling, ports.ErrPyramidCeiling)
	}

	return &domain.Position{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		EntryPrice:      price,
		CurrentPrice:    price,
		BaseQuantity:    quantity,
		CurrentQuantity: quantity,
		BaseSize:        size,
		TotalInvested:   size,
		PyramidCount:    0,
		MaxPyramidCount: settings.MaxPyramidsPerStock,
		CreatedAt:       time.Now(),
	}, nil
}

// PyramidOrder describes one add-on purchase. A zero value requests auto
// sizing: the increment is BaseSize * PyramidIncrementPercent/100 filled at
// the current mark. Setting Price and Quantity requests custom sizing.
type PyramidOrder struct {
	Price    float64
	Quantity int64
}

// Custom reports whether the order carries explicit fill terms.
func (o PyramidOrder) Custom() bool {
	return o.Price > 0 && o.Quantity > 0
}

// AddPyramid applies one pyramid step to the position. The position is
// mutated only when every constraint passes.
func AddPyramid(pos *domain.Position, settings *domain.Settings, order PyramidOrder) error {
	if pos.PyramidCount >= pos.MaxPyramidCount {
		return fmt.Errorf("position %s already has %d of %d pyramids: %w", pos.Symbol, pos.PyramidCount, pos.MaxPyramidCount, ports.ErrPyramidLimit)
	}

	var increment float64
	var addedQuantity int64
	if order.Custom() {
		increment = order.Price * float64(order.Quantity)
		addedQuantity = order.Quantity
	} else {
		if pos.CurrentPrice <= 0 {
			return fmt.Errorf("cannot auto-size pyramid without a positive mark price: %w", ports.ErrValidation)
		}
		increment = pos.BaseSize * (settings.PyramidIncrementPercent / 100)
		addedQuantity = int64(math.Floor(increment / pos.CurrentPrice))
	}

	newInvested := pos.TotalInvested + increment
	if maxAllowed := capital.MaxAllowedPerPosition(settings); newInvested > maxAllowed {
		return fmt.Errorf("pyramid would raise invested to %.2f against allocation limit %.2f: %w", newInvested, maxAllowed, ports.ErrAllocationLimit)
	}
	if ceiling := capital.MaxPyramidCeiling(pos); newInvested > ceiling {
		return fmt.Errorf("pyramid would raise invested to %.2f against pyramid ceiling %.2f: %w", newInvested, ceiling, ports.ErrPyramidCeiling)
	}

	pos.TotalInvested = newInvested
	pos.CurrentQuantity += addedQuantity
	pos.PyramidCount++
	pos.RefreshPNL()
	return nil
}

// SetQuantity corrects the live quantity of a position without pyramiding.
// The per-share cost basis is preserved: editing quantity neither realizes
// nor fabricates PnL from price movement. A non-positive quantity is a
// silent no-op.
func SetQuantity(pos *domain.Position, settings *domain.Settings, newQuantity int64) error {
	if newQuantity <= 0 {
		return nil
	}
	newValue := float64(newQuantity) * pos.CurrentPrice
	if maxAllowed := capital.MaxAllowedPerPosition(settings); newValue > maxAllowed {
		return fmt.Errorf("quantity %d worth %.2f exceeds allocation limit %.2f: %w", newQuantity, newValue, maxAllowed, ports.ErrAllocationLimit)
	}

	avgCost := pos.AvgCost()
	pos.CurrentQuantity = newQuantity
	pos.TotalInvested = float64(newQuantity) * avgCost
	pos.RefreshPNL()
	return nil
}

// MarkPrice applies a new mark to the position. Non-positive prices retain
// the previous mark. There is deliberately no allocation re-check: a price
// move may push a position above its ceiling, which is enforced only when
// new capital is committed.
func MarkPrice(pos *domain.Position, newPrice float64) {
	if newPrice > 0 {
		pos.CurrentPrice = newPrice
	}
	pos.RefreshPNL()
}

// AdjustPyramidCount manually corrects the recorded pyramid count and
// re-snapshots the cap from settings. Out-of-range counts are ignored.
func AdjustPyramidCount(pos *domain.Position, settings *domain.Settings, count int) {
	if count < 0 || count > settings.MaxPyramidsPerStock {
		return
	}
	pos.PyramidCount = count
	pos.MaxPyramidCount = settings.MaxPyramidsPerStock
}

// ApplySettingsChange re-snapshots the pyramid cap on every active position
// and clamps counts that exceed a newly lowered cap. The clamp is silent.
func ApplySettingsChange(active []*domain.Position, settings *domain.Settings) {
	for _, pos := range active {
		pos.MaxPyramidCount = settings.MaxPyramidsPerStock
		if pos.PyramidCount > pos.MaxPyramidCount {
			pos.PyramidCount = pos.MaxPyramidCount
		}
	}
}
