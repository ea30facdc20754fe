// Package opm owns the order aggregate state machine and the open
// position's running P&L, and reconciles broker executions into both via
// the prp event store.
package opm

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const OrderTypeLimit OrderType = "LIMIT"

type OrderStatus string

const (
	StatusPendingSubmit   OrderStatus = "PENDING_SUBMIT"
	StatusSubmitted       OrderStatus = "SUBMITTED"
	StatusAccepted        OrderStatus = "ACCEPTED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusReconciling     OrderStatus = "RECONCILING"
)

type PositionState string

const (
	PositionFlat     PositionState = "FLAT"
	PositionLongOpen PositionState = "LONG_OPEN"
	PositionExiting  PositionState = "EXITING"
	PositionClosed   PositionState = "CLOSED"
)

// OrderAggregate is the order-side of an in-flight or completed trade.
type OrderAggregate struct {
	OrderAggregateID string
	TradingDate       string
	Symbol            string
	Side              Side
	OrderType         OrderType
	RequestedPrice    decimal.Decimal
	RequestedQty      int
	Status            OrderStatus
	BrokerOrderID     string
	ClientOrderID     string
	CumExecutedQty    int
	AvgExecutedPrice  decimal.Decimal
	RemainingQty      int
	LastErrorCode     string
	LastUpdatedAt     time.Time
}

// PositionModel is the single symbol's open position, re-derived from
// executions as they're reconciled.
type PositionModel struct {
	PositionID        string
	TradingDate       string
	Symbol            string
	State             PositionState
	Quantity          int
	AvgBuyPrice       decimal.Decimal
	BuyNotional       decimal.Decimal
	SellQuantity      int
	AvgSellPrice      decimal.Decimal
	SellNotional      decimal.Decimal
	CurrentPrice      decimal.Decimal
	GrossInterimPnl   decimal.Decimal
	EstimatedSellTax  decimal.Decimal
	EstimatedSellFee  decimal.Decimal
	NetInterimPnl     decimal.Decimal
	CurrentProfitRate decimal.Decimal
	MaxProfitRate     decimal.Decimal
	MinProfitLocked   bool
	StateVersion      int
	UpdatedAt         time.Time
}

// ExecutionFill is a single broker fill reported against an order.
type ExecutionFill struct {
	ExecutionID   string
	BrokerOrderID string
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Qty           int
	ExecutedAt    time.Time
}

// NewEmptyPosition builds the zero-value FLAT position a trading date's
// symbol starts from.
func NewEmptyPosition(tradingDate, symbol string, now time.Time) PositionModel {
	return PositionModel{
		PositionID:        "pos-" + tradingDate + "-" + symbol,
		TradingDate:       tradingDate,
		Symbol:            symbol,
		State:             PositionFlat,
		Quantity:          0,
		AvgBuyPrice:       decimal.Zero,
		BuyNotional:       decimal.Zero,
		SellQuantity:      0,
		AvgSellPrice:      decimal.Zero,
		SellNotional:      decimal.Zero,
		CurrentPrice:      decimal.Zero,
		GrossInterimPnl:   decimal.Zero,
		EstimatedSellTax:  decimal.Zero,
		EstimatedSellFee:  decimal.Zero,
		NetInterimPnl:     decimal.Zero,
		CurrentProfitRate: decimal.Zero,
		MaxProfitRate:     decimal.Zero,
		MinProfitLocked:   false,
		StateVersion:      0,
		UpdatedAt:         now,
	}
}
