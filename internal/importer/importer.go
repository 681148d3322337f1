// Package importer reconciles a flattened multi-lot portfolio export into
// one normalized position per symbol. Each input row is one historical
// fill at some pyramid level; rows for the same symbol are folded together
// using weighted-average cost.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pnfTracker/internal/domain"
	"pnfTracker/internal/ports"
)

// Required columns, matched case-insensitively in any order.
var requiredColumns = []string{"symbol", "current_price", "total_quantity", "avg_cost", "pyramid_level"}

type lot struct {
	currentPrice float64
	quantity     int64
	avgCost      float64
	pyramidLevel int
	investment   float64
}

// Result is the outcome of a reconciliation.
type Result struct {
	Positions   []*domain.Position
	SkippedRows int // malformed rows dropped, not surfaced as errors
}

// Reconcile parses delimited text with a header row and folds it into one
// position per symbol. A schema mismatch rejects the whole import; malformed
// individual rows are skipped and counted.
//
// The current price of each symbol is taken from its highest-pyramid-level
// row, with input order breaking ties. This relies on row ordering in the
// export and is kept for compatibility with existing exports; it is a
// likely latent defect, not a rule to generalize.
func Reconcile(data string, settings *domain.Settings) (*Result, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read header row: %w", ports.ErrMissingColumns)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s: %w", strings.Join(missing, ", "), ports.ErrMissingColumns)
	}

	lots := make(map[string][]lot)
	var order []string // first-seen symbol order
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		symbol, l, ok := parseLot(record, columns)
		if !ok {
			skipped++
			continue
		}
		if _, seen := lots[symbol]; !seen {
			order = append(order, symbol)
		}
		lots[symbol] = append(lots[symbol], l)
	}

	result := &Result{SkippedRows: skipped}
	for _, symbol := range order {
		result.Positions = append(result.Positions, reconcileSymbol(symbol, lots[symbol], settings))
	}
	return result, nil
}

func parseLot(record []string, columns map[string]int) (string, lot, bool) {
	field := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	symbol := strings.ToUpper(field("symbol"))
	price, err1 := strconv.ParseFloat(field("current_price"), 64)
	quantity, err2 := strconv.ParseFloat(field("total_quantity"), 64)
	avgCost, err3 := strconv.ParseFloat(field("avg_cost"), 64)
	level, err4 := strconv.Atoi(field("pyramid_level"))
	if err4 != nil {
		level = 0 // a blank or junk level defaults to the base lot
	}
	if symbol == "" || err1 != nil || err2 != nil || err3 != nil {
		return "", lot{}, false
	}
	if price <= 0 || quantity <= 0 || avgCost <= 0 {
		return "", lot{}, false
	}
	qty := int64(quantity)
	return symbol, lot{
		currentPrice: price,
		quantity:     qty,
		avgCost:      avgCost,
		pyramidLevel: level,
		investment:   float64(qty) * avgCost,
	}, true
}

func reconcileSymbol(symbol string, entries []lot, settings *domain.Settings) *domain.Position {
	// Stable sort keeps input order within a level, so the last row of the
	// highest level supplies the current price.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].pyramidLevel < entries[j].pyramidLevel
	})

	var totalQuantity int64
	var totalInvestment float64
	maxLevel := 0
	for _, e := range entries {
		totalQuantity += e.quantity
		totalInvestment += e.investment
		if e.pyramidLevel > maxLevel {
			maxLevel = e.pyramidLevel
		}
	}
	currentPrice := entries[len(entries)-1].currentPrice

	base := entries[0]
	for _, e := range entries {
		if e.pyramidLevel == 0 {
			base = e
			break
		}
	}

	pos := &domain.Position{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		EntryPrice:      totalInvestment / float64(totalQuantity), // weighted-average cost
		CurrentPrice:    currentPrice,
		BaseQuantity:    base.quantity,
		CurrentQuantity: totalQuantity,
		BaseSize:        base.investment,
		TotalInvested:   totalInvestment,
		PyramidCount:    maxLevel,
		MaxPyramidCount: settings.MaxPyramidsPerStock,
		CreatedAt:       time.Now(),
	}
	pos.RefreshPNL()
	return pos
}
