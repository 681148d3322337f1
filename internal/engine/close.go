package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"pnfTracker/internal/domain"
	"pnfTracker/internal/ports"
)

// CloseResult is the outcome of an accepted close. Remainder is nil on a
// full close; on a partial close it is the same position shrunk by the
// closed portion.
type CloseResult struct {
	Remainder *domain.Position
	Closed    *domain.ClosedPosition
}

// ClosePosition liquidates closeQuantity shares of the position at
// exitPrice. Cost is allocated proportionally: the closed slice carries
// closeQuantity/currentQuantity of the cost basis, and on a partial close
// the base lot shrinks by the same portion so future auto-sized pyramids
// stay consistent with the smaller remainder. Pyramid counts carry over
// unchanged. The position is mutated only on an accepted partial close.
func ClosePosition(pos *domain.Position, exitPrice float64, closeQuantity int64) (*CloseResult, error) {
	if exitPrice <= 0 {
		return nil, fmt.Errorf("exit price %.2f must be positive: %w", exitPrice, ports.ErrInvalidCloseQuantity)
	}
	if closeQuantity <= 0 || closeQuantity > pos.CurrentQuantity {
		return nil, fmt.Errorf("close quantity %d must be in 1..%d: %w", closeQuantity, pos.CurrentQuantity, ports.ErrInvalidCloseQuantity)
	}

	portion := float64(closeQuantity) / float64(pos.CurrentQuantity)
	closedInvestment := pos.TotalInvested * portion
	exitValue := exitPrice * float64(closeQuantity)
	realizedPNL := exitValue - closedInvestment

	closed := &domain.ClosedPosition{
		ID:                 uuid.NewString(),
		Symbol:             pos.Symbol,
		EntryPrice:         pos.EntryPrice,
		ExitPrice:          exitPrice,
		Quantity:           closeQuantity,
		TotalInvested:      closedInvestment,
		ExitValue:          exitValue,
		RealizedPNL:        realizedPNL,
		RealizedPNLPercent: realizedPNL / closedInvestment * 100,
		ClosedAt:           time.Now(),
	}

	if closeQuantity == pos.CurrentQuantity {
		return &CloseResult{Remainder: nil, Closed: closed}, nil
	}

	remaining := 1 - portion
	pos.CurrentQuantity -= closeQuantity
	pos.TotalInvested -= closedInvestment
	pos.BaseQuantity = int64(math.Round(float64(pos.BaseQuantity) * remaining))
	pos.BaseSize *= remaining
	pos.RefreshPNL()
	return &CloseResult{Remainder: pos, Closed: closed}, nil
}
