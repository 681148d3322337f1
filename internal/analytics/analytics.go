// Package analytics computes portfolio performance and risk metrics over
// the active set and the closed-position history.
package analytics

import (
	"sort"
	"time"

	"pnfTracker/internal/capital"
	"pnfTracker/internal/domain"
)

// TimeFilter restricts win/loss and performer metrics to recent closes.
type TimeFilter string

const (
	FilterAll         TimeFilter = "all"
	FilterLastMonth   TimeFilter = "1m"
	FilterLast3Months TimeFilter = "3m"
	FilterLast6Months TimeFilter = "6m"
	FilterLastYear    TimeFilter = "1y"
)

// WinLossStats summarizes realized outcomes.
type WinLossStats struct {
	TotalTrades   int
	Winners       int
	Losers        int
	WinRate       float64 // percent of trades with positive realized PnL
	TotalWinnings float64
	TotalLosses   float64 // absolute value
	AverageWin    float64
	AverageLoss   float64 // absolute value
	ProfitFactor  float64 // TotalWinnings / TotalLosses, 0 when no losses
}

// Performer is one position ranked by percent performance.
type Performer struct {
	Symbol      string
	PNL         float64
	Performance float64 // percent
	Closed      bool
}

// Allocation is one symbol's share of invested capital.
type Allocation struct {
	Symbol        string
	Invested      float64
	AllocationPct float64
}

// RiskMetrics captures portfolio concentration and capital usage.
type RiskMetrics struct {
	MaxAllocationPct float64
	HerfindahlIndex  float64 // sum of squared allocation percentages
	UtilizationPct   float64 // invested / trading capital
}

// Report aggregates every metric the dashboard shows.
type Report struct {
	TotalInvested float64
	UnrealizedPNL float64
	RealizedPNL   float64
	OverallROI    float64 // percent over active plus closed cost basis
	Stats         WinLossStats
	TopWinners    []Performer
	TopLosers     []Performer
	Composition   []Allocation
	Risk          RiskMetrics
}

const topPerformerCount = 3

// Analyze computes the full report. The filter applies to closed-position
// metrics only; the active set is always included in full.
func Analyze(active []*domain.Position, closed []*domain.ClosedPosition, settings *domain.Settings, filter TimeFilter, now time.Time) *Report {
	r := &Report{}

	var closedInvested float64
	for _, pos := range active {
		r.TotalInvested += pos.TotalInvested
		r.UnrealizedPNL += pos.PNL
	}
	for _, pos := range closed {
		r.RealizedPNL += pos.RealizedPNL
		closedInvested += pos.TotalInvested
	}
	if denom := r.TotalInvested + closedInvested; denom > 0 {
		r.OverallROI = (r.UnrealizedPNL + r.RealizedPNL) / denom * 100
	}

	filtered := filterClosed(closed, filter, now)
	r.Stats = winLossStats(filtered)
	r.TopWinners, r.TopLosers = topPerformers(active, filtered)
	r.Composition = composition(active, r.TotalInvested)
	r.Risk = riskMetrics(r.Composition, r.TotalInvested, settings)
	return r
}

func filterClosed(closed []*domain.ClosedPosition, filter TimeFilter, now time.Time) []*domain.ClosedPosition {
	var months int
	switch filter {
	case FilterLastMonth:
		months = 1
	case FilterLast3Months:
		months = 3
	case FilterLast6Months:
		months = 6
	case FilterLastYear:
		months = 12
	default:
		return closed
	}
	cutoff := now.AddDate(0, -months, 0)
	out := make([]*domain.ClosedPosition, 0, len(closed))
	for _, pos := range closed {
		if !pos.ClosedAt.Before(cutoff) {
			out = append(out, pos)
		}
	}
	return out
}

func winLossStats(closed []*domain.ClosedPosition) WinLossStats {
	var s WinLossStats
	s.TotalTrades = len(closed)
	for _, pos := range closed {
		if pos.RealizedPNL > 0 {
			s.Winners++
			s.TotalWinnings += pos.RealizedPNL
		} else if pos.RealizedPNL < 0 {
			s.Losers++
			s.TotalLosses += -pos.RealizedPNL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Winners) / float64(s.TotalTrades) * 100
	}
	if s.Winners > 0 {
		s.AverageWin = s.TotalWinnings / float64(s.Winners)
	}
	if s.Losers > 0 {
		s.AverageLoss = s.TotalLosses / float64(s.Losers)
	}
	if s.TotalLosses > 0 {
		s.ProfitFactor = s.TotalWinnings / s.TotalLosses
	}
	return s
}

func topPerformers(active []*domain.Position, closed []*domain.ClosedPosition) (winners, losers []Performer) {
	all := make([]Performer, 0, len(active)+len(closed))
	for _, pos := range active {
		all = append(all, Performer{Symbol: pos.Symbol, PNL: pos.PNL, Performance: pos.PNLPercent})
	}
	for _, pos := range closed {
		all = append(all, Performer{Symbol: pos.Symbol, PNL: pos.RealizedPNL, Performance: pos.RealizedPNLPercent, Closed: true})
	}
	for _, p := range all {
		if p.Performance > 0 {
			winners = append(winners, p)
		} else if p.Performance < 0 {
			losers = append(losers, p)
		}
	}
	sort.SliceStable(winners, func(i, j int) bool { return winners[i].Performance > winners[j].Performance })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].Performance < losers[j].Performance })
	if len(winners) > topPerformerCount {
		winners = winners[:topPerformerCount]
	}
	if len(losers) > topPerformerCount {
		losers = losers[:topPerformerCount]
	}
	return winners, losers
}

func composition(active []*domain.Position, totalInvested float64) []Allocation {
	out := make([]Allocation, 0, len(active))
	for _, pos := range active {
		a := Allocation{Symbol: pos.Symbol, Invested: pos.TotalInvested}
		if totalInvested > 0 {
			a.AllocationPct = pos.TotalInvested / totalInvested * 100
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AllocationPct > out[j].AllocationPct })
	return out
}

func riskMetrics(composition []Allocation, totalInvested float64, settings *domain.Settings) RiskMetrics {
	var m RiskMetrics
	for _, a := range composition {
		if a.AllocationPct > m.MaxAllocationPct {
			m.MaxAllocationPct = a.AllocationPct
		}
		m.HerfindahlIndex += a.AllocationPct * a.AllocationPct
	}
	if tc := capital.TradingCapital(settings); tc > 0 {
		m.UtilizationPct = totalInvested / tc * 100
	}
	return m
}
