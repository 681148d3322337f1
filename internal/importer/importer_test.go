package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pnfTracker/internal/domain"
	"pnfTracker/internal/ports"
)

func testSettings() *domain.Settings {
	return &domain.Settings{
		TotalCapital:            1200000,
		Buffer:                  200000,
		MaxAllocation:           0.25,
		TrancheSize:             125000,
		MaxStocks:               8,
		MaxPyramidsPerStock:     3,
		PyramidIncrementPercent: 50,
	}
}

func TestReconcileMultiLotSymbol(t *testing.T) {
	data := `Symbol,Current_Price,Total_Quantity,Avg_Cost,Pyramid_Level
X,100,10,90,0
X,100,5,95,1`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Zero(t, result.SkippedRows)

	pos := result.Positions[0]
	assert.Equal(t, "X", pos.Symbol)
	assert.Equal(t, int64(15), pos.CurrentQuantity)
	assert.InDelta(t, 1375, pos.TotalInvested, 1e-9) // 10*90 + 5*95
	assert.InDelta(t, 1375.0/15, pos.EntryPrice, 1e-9)
	assert.Equal(t, 1, pos.PyramidCount)
	assert.Equal(t, int64(10), pos.BaseQuantity)
	assert.InDelta(t, 900, pos.BaseSize, 1e-9)
	assert.Equal(t, float64(100), pos.CurrentPrice)
	assert.InDelta(t, 100*15-1375, pos.PNL, 1e-9)
}

func TestReconcileSchemaMismatch(t *testing.T) {
	data := `Symbol,Price,Qty
X,100,10`

	_, err := Reconcile(data, testSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrMissingColumns)
}

func TestReconcileHeaderCaseAndOrderInsensitive(t *testing.T) {
	data := `pyramid_level,AVG_COST,total_quantity,CURRENT_PRICE,symbol
0,2500,40,2650,reliance`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, "RELIANCE", pos.Symbol)
	assert.Equal(t, int64(40), pos.CurrentQuantity)
	assert.Equal(t, float64(2650), pos.CurrentPrice)
}

func TestReconcileSkipsMalformedRows(t *testing.T) {
	data := `Symbol,Current_Price,Total_Quantity,Avg_Cost,Pyramid_Level
GOOD,100,10,90,0
,100,10,90,0
BADPRICE,0,10,90,0
BADQTY,100,-3,90,0
BADCOST,100,10,junk,0`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, "GOOD", result.Positions[0].Symbol)
	assert.Equal(t, 4, result.SkippedRows)
}

func TestReconcileCurrentPriceFromHighestLevelRow(t *testing.T) {
	// Rows arrive out of level order; the highest-level row wins the price,
	// with input order breaking ties.
	data := `Symbol,Current_Price,Total_Quantity,Avg_Cost,Pyramid_Level
X,105,5,95,2
X,101,10,90,0
X,103,5,92,2`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, float64(103), pos.CurrentPrice)
	assert.Equal(t, 2, pos.PyramidCount)
}

func TestReconcileBaseLotFallsBackToFirstRow(t *testing.T) {
	// No level-0 row: the first row (after the stable level sort) is the base.
	data := `Symbol,Current_Price,Total_Quantity,Avg_Cost,Pyramid_Level
X,100,8,95,1
X,100,4,98,2`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	pos := result.Positions[0]
	assert.Equal(t, int64(8), pos.BaseQuantity)
	assert.InDelta(t, 8*95, pos.BaseSize, 1e-9)
}

func TestReconcileMultipleSymbolsKeepInputOrder(t *testing.T) {
	data := `Symbol,Current_Price,Total_Quantity,Avg_Cost,Pyramid_Level
DIXON,17512,4,16729,0
SARDA,602,223,560.50,2
DIXON,17512,2,17100,1`

	result, err := Reconcile(data, testSettings())
	require.NoError(t, err)
	require.Len(t, result.Positions, 2)
	assert.Equal(t, "DIXON", result.Positions[0].Symbol)
	assert.Equal(t, "SARDA", result.Positions[1].Symbol)
	assert.Equal(t, int64(6), result.Positions[0].CurrentQuantity)
	assert.Equal(t, 3, result.Positions[0].MaxPyramidCount)
}
