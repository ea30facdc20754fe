package tse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTime(hh, mm, ss int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, ss, 0, time.UTC)
}

func TestNewService_RejectsOutOfRangeWatchList(t *testing.T) {
	_, err := NewService("2026-07-31", nil)
	assert.Error(t, err)

	many := make([]string, 21)
	for i := range many {
		many[i] = "005930"
	}
	_, err = NewService("2026-07-31", many)
	assert.Error(t, err)
}

func TestOnQuote_BeforeReferenceCaptureTimeIsIgnored(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 2, 59), Symbol: "005930", CurrentPrice: decimal.RequireFromString("70000"), Sequence: 1})
	assert.Equal(t, SymbolWaitReference, svc.ctx.Symbols["005930"].State)
}

func TestOnQuote_SetsReferencePriceOnFirstEligibleQuote(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 3, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("70000"), Sequence: 1})
	sc := svc.ctx.Symbols["005930"]
	assert.Equal(t, SymbolTracking, sc.State)
	require.NotNil(t, sc.ReferencePrice)
	assert.True(t, sc.ReferencePrice.Equal(decimal.RequireFromString("70000")))
}

func TestOnQuote_DropThenReboundEntersBuyCandidateAndEmitsBuySignal(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 3, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("70000"), Sequence: 1})

	out := svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 4, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("69200"), Sequence: 2})
	assert.Equal(t, SymbolBuyCandidate, svc.ctx.Symbols["005930"].State)
	assert.Len(t, out.StrategyEvents, 1)
	assert.Equal(t, "BUY_CANDIDATE_ENTERED", out.StrategyEvents[0].EventType)

	out = svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 5, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("69350"), Sequence: 3})

	var sawBuySignal bool
	for _, e := range out.StrategyEvents {
		if e.EventType == "BUY_SIGNAL" {
			sawBuySignal = true
		}
	}
	assert.True(t, sawBuySignal)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CommandPlaceBuy, out.Commands[0].Kind)
	assert.Equal(t, PortfolioBuyRequested, svc.ctx.Portfolio.State)
	assert.False(t, svc.ctx.Portfolio.GateOpen)
}

func TestOnQuote_BlockedByDegradedSkipsEvaluation(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)
	svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 3, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("70000"), Sequence: 1})

	svc.SetBuyEntryBlockedByDegraded(true)
	svc.OnQuote(QuoteEvent{TradingDate: "2026-07-31", OccurredAt: mkTime(9, 4, 0), Symbol: "005930", CurrentPrice: decimal.RequireFromString("69200"), Sequence: 2})
	assert.Equal(t, SymbolTracking, svc.ctx.Symbols["005930"].State)
}

func TestOnPositionUpdate_LocksMinProfitAndEmitsSellSignalOnPreservationBreak(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)
	svc.ctx.Portfolio.ActiveSymbol = "005930"

	out := svc.OnPositionUpdate(PositionUpdateEvent{
		TradingDate:       "2026-07-31",
		Symbol:            "005930",
		PositionState:     PositionLongOpen,
		CurrentProfitRate: decimal.RequireFromString("1.2"),
		MaxProfitRate:     decimal.RequireFromString("1.2"),
		UpdatedAt:         mkTime(9, 30, 0),
	})
	assert.True(t, svc.ctx.Portfolio.MinProfitLocked)
	require.Len(t, out.StrategyEvents, 1)
	assert.Equal(t, "MIN_PROFIT_LOCKED", out.StrategyEvents[0].EventType)

	out = svc.OnPositionUpdate(PositionUpdateEvent{
		TradingDate:       "2026-07-31",
		Symbol:            "005930",
		PositionState:     PositionLongOpen,
		CurrentProfitRate: decimal.RequireFromString("0.9"),
		MaxProfitRate:     decimal.RequireFromString("1.2"),
		UpdatedAt:         mkTime(9, 31, 0),
	})
	assert.True(t, svc.ctx.Portfolio.SellSignaled)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CommandPlaceSell, out.Commands[0].Kind)
}
