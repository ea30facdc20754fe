package prp

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkExec(id, symbol, side string, price decimal.Decimal, qty int, at time.Time) ExecutionEvent {
	return ExecutionEvent{
		EventID:        "evt-" + id,
		ExecutionID:    id,
		OrderID:        "ord-" + id,
		TradingDate:    "2026-07-31",
		OccurredAt:     at,
		Symbol:         symbol,
		Side:           side,
		ExecutionPrice: price,
		ExecutionQty:   qty,
		CumQty:         qty,
		RemainingQty:   0,
	}
}

func TestBuildTradeDetails_SinglePartialFIFO(t *testing.T) {
	base := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	execs := []ExecutionEvent{
		mkExec("buy-1", "005930", "BUY", decimal.NewFromInt(70000), 10, base),
		mkExec("sell-1", "005930", "SELL", decimal.NewFromInt(72000), 6, base.Add(time.Minute)),
	}
	details, anomalies := buildTradeDetails(execs)
	require.Len(t, details, 1)
	assert.Empty(t, anomalies)
	d := details[0]
	assert.Equal(t, 6, d.Quantity)
	assert.True(t, d.BuyPrice.Equal(decimal.NewFromInt(70000)))
	assert.True(t, d.SellPrice.Equal(decimal.NewFromInt(72000)))
}

func TestBuildTradeDetails_MultiLotFIFO(t *testing.T) {
	base := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	execs := []ExecutionEvent{
		mkExec("buy-1", "005930", "BUY", decimal.NewFromInt(70000), 5, base),
		mkExec("buy-2", "005930", "BUY", decimal.NewFromInt(71000), 5, base.Add(time.Minute)),
		mkExec("sell-1", "005930", "SELL", decimal.NewFromInt(73000), 8, base.Add(2*time.Minute)),
	}
	details, anomalies := buildTradeDetails(execs)
	require.Len(t, details, 2)
	assert.Empty(t, anomalies)
	assert.Equal(t, 5, details[0].Quantity)
	assert.True(t, details[0].BuyPrice.Equal(decimal.NewFromInt(70000)))
	assert.Equal(t, 3, details[1].Quantity)
	assert.True(t, details[1].BuyPrice.Equal(decimal.NewFromInt(71000)))
}

func TestBuildTradeDetails_OrphanSellIsAnomaly(t *testing.T) {
	base := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	execs := []ExecutionEvent{
		mkExec("sell-1", "005930", "SELL", decimal.NewFromInt(73000), 4, base),
	}
	details, anomalies := buildTradeDetails(execs)
	assert.Empty(t, details)
	require.Len(t, anomalies, 1)
	assert.Contains(t, anomalies[0], "sell-1")
}

func TestAggregateDailyReport_ZeroBuyAmountYieldsZeroReturn(t *testing.T) {
	report := aggregateDailyReport(nil, nil, "2026-07-31")
	assert.True(t, report.TotalReturnRate.IsZero())
	assert.True(t, report.TotalBuyAmount.IsZero())
}

func TestCalcSellTaxAndFeeQuantized(t *testing.T) {
	sellAmount := decimal.NewFromInt(100000)
	assert.True(t, calcSellTax(sellAmount).Equal(decimal.NewFromFloat(200.00)))
	assert.True(t, calcSellFee(sellAmount).Equal(decimal.NewFromFloat(11.00)))
}
