// Package prp is the persistence & reporting layer: an append-only sqlite
// event store (strategy/order/execution events, position snapshots) plus
// FIFO trade-matching for daily report generation.
package prp

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyEvent records a TSE-side observation (reference capture, drop
// detection, buy-candidate update, rebound trigger, ...).
type StrategyEvent struct {
	EventID      string
	OccurredAt   time.Time
	TradingDate  string // YYYY-MM-DD
	Symbol       string
	EventType    string
	BasePrice    *decimal.Decimal
	LocalLow     *decimal.Decimal
	CurrentPrice *decimal.Decimal
	Payload      map[string]any
}

// OrderEvent records every order-status transition.
type OrderEvent struct {
	EventID        string
	OrderID        string
	OccurredAt     time.Time
	TradingDate    string
	Symbol         string
	Side           string
	OrderType      string
	OrderPrice     decimal.Decimal
	Quantity       int
	Status         string
	ClientOrderKey string
	ReasonCode     string
	ReasonMessage  string
}

// ExecutionEvent records a single broker fill, deduplicated by ExecutionID.
type ExecutionEvent struct {
	EventID        string
	ExecutionID    string
	OrderID        string
	OccurredAt     time.Time
	TradingDate    string
	Symbol         string
	Side           string
	ExecutionPrice decimal.Decimal
	ExecutionQty   int
	CumQty         int
	RemainingQty   int
}

// PositionSnapshot captures a point-in-time read of an open position's
// running P&L state.
type PositionSnapshot struct {
	SnapshotID        string
	SavedAt           time.Time
	TradingDate       string
	Symbol            string
	AvgBuyPrice       decimal.Decimal
	Quantity          int
	CurrentProfitRate decimal.Decimal
	MaxProfitRate     decimal.Decimal
	MinProfitLocked   bool
	LastOrderID       string
	StateVersion      int
}

// TradeDetail is one FIFO-matched buy-lot/sell-execution pairing.
type TradeDetail struct {
	ID             string
	TradingDate    string
	Symbol         string
	BuyExecutedAt  time.Time
	SellExecutedAt time.Time
	Quantity       int
	BuyPrice       decimal.Decimal
	SellPrice      decimal.Decimal
	BuyAmount      decimal.Decimal
	SellAmount     decimal.Decimal
	SellTax        decimal.Decimal
	SellFee        decimal.Decimal
	NetPnl         decimal.Decimal
	ReturnRate     decimal.Decimal
}

// DailyReport aggregates a trading date's TradeDetail rows.
type DailyReport struct {
	TradingDate     string
	TotalBuyAmount  decimal.Decimal
	TotalSellAmount decimal.Decimal
	TotalSellTax    decimal.Decimal
	TotalSellFee    decimal.Decimal
	TotalNetPnl     decimal.Decimal
	TotalReturnRate decimal.Decimal
	GeneratedAt     time.Time
	// Anomalies lists orphan SELL executions that had no open BUY lot to
	// match against — these are silently skipped by the FIFO matcher but
	// surfaced here instead of vanishing.
	Anomalies []string
}
