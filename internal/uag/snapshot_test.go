package uag

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"kiatrader/internal/kia"
)

func mkTime(hh, mm, ss int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, ss, 0, time.UTC)
}

func quoteAt(price string, hh, mm, ss int) kia.MarketQuote {
	return kia.MarketQuote{Symbol: "005930", Price: decimal.RequireFromString(price), AsOf: mkTime(hh, mm, ss)}
}

func TestApplyQuote_LatchesReferenceAndClosePriceOnce(t *testing.T) {
	snapshot := &MonitoringSnapshot{SymbolCode: "005930", SymbolName: "005930"}

	applyQuote(snapshot, quoteAt("70000", 9, 2, 59))
	assert.Nil(t, snapshot.PriceAt0903)

	applyQuote(snapshot, quoteAt("70500", 9, 3, 0))
	assert.Equal(t, "70500", snapshot.PriceAt0903.String())

	applyQuote(snapshot, quoteAt("71000", 9, 3, 1))
	assert.Equal(t, "70500", snapshot.PriceAt0903.String(), "reference price must latch, not follow later quotes")

	applyQuote(snapshot, quoteAt("69000", 15, 29, 59))
	assert.Nil(t, snapshot.CurrentPriceAtClose)

	applyQuote(snapshot, quoteAt("68500", 15, 30, 0))
	assert.Equal(t, "68500", snapshot.CurrentPriceAtClose.String())

	applyQuote(snapshot, quoteAt("68000", 15, 30, 1))
	assert.Equal(t, "68500", snapshot.CurrentPriceAtClose.String(), "close price must latch once 15:30 is reached")
}

func TestApplyQuote_TracksLowUntilBuyThenFreezes(t *testing.T) {
	snapshot := &MonitoringSnapshot{SymbolCode: "005930", SymbolName: "005930"}

	applyQuote(snapshot, quoteAt("70000", 9, 10, 0))
	applyQuote(snapshot, quoteAt("69000", 9, 11, 0))
	assert.Equal(t, "69000", snapshot.PreviousLowPrice.String())

	applyBuy(snapshot, decimal.RequireFromString("69000"), mkTime(9, 12, 0))

	applyQuote(snapshot, quoteAt("68000", 9, 13, 0))
	assert.Equal(t, "69000", snapshot.PreviousLowPrice.String(), "low must freeze once a buy has happened")
}

func TestApplyQuote_TracksHighOnlyAfterBuyAboveOnePercentThreshold(t *testing.T) {
	snapshot := &MonitoringSnapshot{SymbolCode: "005930", SymbolName: "005930"}
	applyBuy(snapshot, decimal.RequireFromString("70000"), mkTime(9, 15, 0))

	applyQuote(snapshot, quoteAt("70600", 9, 16, 0))
	assert.Nil(t, snapshot.PreviousHighPrice, "70600 is below the 1.01x threshold of 70700")

	applyQuote(snapshot, quoteAt("70800", 9, 17, 0))
	assert.Equal(t, "70800", snapshot.PreviousHighPrice.String())

	applyQuote(snapshot, quoteAt("70750", 9, 18, 0))
	assert.Equal(t, "70800", snapshot.PreviousHighPrice.String(), "high must not move backward on a lower quote")
}

func TestApplyBuy_ResetsPreviousHighOnEveryNewBuy(t *testing.T) {
	snapshot := &MonitoringSnapshot{SymbolCode: "005930", SymbolName: "005930"}
	applyBuy(snapshot, decimal.RequireFromString("70000"), mkTime(9, 15, 0))
	applyQuote(snapshot, quoteAt("71000", 9, 16, 0))
	assert.NotNil(t, snapshot.PreviousHighPrice)

	applyBuy(snapshot, decimal.RequireFromString("72000"), mkTime(10, 0, 0))
	assert.Nil(t, snapshot.PreviousHighPrice, "a new buy must clear the prior cycle's high tracker")
	assert.Nil(t, snapshot.PreviousHighTime)
}

func TestApplySell_RecordsSellTimeAndPrice(t *testing.T) {
	snapshot := &MonitoringSnapshot{SymbolCode: "005930", SymbolName: "005930"}
	applySell(snapshot, decimal.RequireFromString("71500"), mkTime(11, 0, 0))
	assert.Equal(t, "71500", snapshot.SellPrice.String())
	assert.Equal(t, mkTime(11, 0, 0), *snapshot.SellTime)
}

func TestBuildMonitoringRows_EmptyWhenTradingDateMismatches(t *testing.T) {
	svc := &Service{snapshots: newMonitoringSnapshots()}
	svc.state.TradingDate = "2026-07-30"

	rows := svc.buildMonitoringRows([]string{"005930"}, false, "2026-07-31")
	assert.Empty(t, rows)
}

func TestBuildMonitoringRows_SubstitutesClosePriceWhenRequested(t *testing.T) {
	svc := &Service{snapshots: newMonitoringSnapshots()}
	svc.state.TradingDate = "2026-07-31"

	snapshot := svc.snapshots.forSymbol("005930")
	applyQuote(snapshot, quoteAt("70000", 10, 0, 0))
	applyQuote(snapshot, quoteAt("69500", 15, 30, 0))
	applyQuote(snapshot, quoteAt("69000", 15, 31, 0))

	rowsAtClose := svc.buildMonitoringRows([]string{"005930"}, true, "2026-07-31")
	assert.Len(t, rowsAtClose, 1)
	assert.Equal(t, "69500", *rowsAtClose[0].CurrentPrice, "close-price substitution must use the latched 15:30 price")

	rowsLive := svc.buildMonitoringRows([]string{"005930"}, false, "2026-07-31")
	assert.Equal(t, "69000", *rowsLive[0].CurrentPrice, "without substitution the row reflects the latest quote")
}
