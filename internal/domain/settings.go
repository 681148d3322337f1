package domain

// Settings holds the per-account capital and risk configuration.
type Settings struct {
	TotalCapital            float64 // Total account capital in currency units
	Buffer                  float64 // Capital held back from trading, Buffer < TotalCapital
	MaxAllocation           float64 // Fraction (0,1] of trading capital allowed in one position
	TrancheSize             float64 // Derived: floor(tradingCapital / MaxStocks). Never user-edited.
	MaxStocks               int     // Maximum number of simultaneous open positions
	MaxPyramidsPerStock     int     // Per-position pyramid count ceiling
	PyramidIncrementPercent float64 // Percent of the base lot added per auto-sized pyramid
}
