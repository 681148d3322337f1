package domain

import "time"

// ClosedPosition is the immutable record of a full or partial liquidation.
// It is append-only history: once written it is never recomputed.
type ClosedPosition struct {
	ID                 string    // Opaque unique identifier
	Symbol             string    // Stock symbol
	EntryPrice         float64   // Entry reference price of the source position
	ExitPrice          float64   // Price the closed slice was sold at
	Quantity           int64     // Quantity closed
	TotalInvested      float64   // Cost basis of the closed slice
	ExitValue          float64   // ExitPrice * Quantity
	RealizedPNL        float64   // ExitValue - TotalInvested
	RealizedPNLPercent float64   // RealizedPNL / TotalInvested * 100
	ClosedAt           time.Time // When the close was executed
}
