package domain

import "time"

// Position represents an active holding managed under the tranche/pyramid
// methodology. BaseQuantity and BaseSize record the inception lot and are
// the baseline for auto-sized pyramids; they only change when a partial
// close shrinks the position proportionally.
type Position struct {
	ID              string    // Opaque unique identifier
	Symbol          string    // Stock symbol, uppercased, non-empty
	EntryPrice      float64   // First-fill reference price
	CurrentPrice    float64   // Latest mark
	BaseQuantity    int64     // Quantity at inception
	CurrentQuantity int64     // Live quantity
	BaseSize        float64   // Currency size at inception
	TotalInvested   float64   // Live cost basis
	PyramidCount    int       // Pyramids applied so far
	MaxPyramidCount int       // Snapshot of Settings.MaxPyramidsPerStock at last sync
	PNL             float64   // Unrealized PnL at the current mark
	PNLPercent      float64   // PNL / TotalInvested * 100
	CreatedAt       time.Time // When the position was opened
}

// AvgCost returns the weighted-average cost per share.
func (p *Position) AvgCost() float64 {
	if p.CurrentQuantity == 0 {
		return 0
	}
	return p.TotalInvested / float64(p.CurrentQuantity)
}

// MarketValue returns the position value at the current mark.
func (p *Position) MarketValue() float64 {
	return p.CurrentPrice * float64(p.CurrentQuantity)
}

// RefreshPNL recomputes unrealized PnL from the current mark and cost basis.
func (p *Position) RefreshPNL() {
	p.PNL = p.MarketValue() - p.TotalInvested
	if p.TotalInvested != 0 {
		p.PNLPercent = p.PNL / p.TotalInvested * 100
	} else {
		p.PNLPercent = 0
	}
}
