// Package tse is the trading strategy engine: per-symbol reference-price
// tracking, drop/rebound buy-candidate detection, a scan scheduler for
// picking one candidate across symbols, and the quote monitoring loop that
// drives it cycle by cycle.
package tse

import (
	"time"

	"github.com/shopspring/decimal"
)

type SymbolState string

const (
	SymbolWaitReference SymbolState = "WAIT_REFERENCE"
	SymbolTracking       SymbolState = "TRACKING"
	SymbolBuyCandidate   SymbolState = "BUY_CANDIDATE"
	SymbolBuyTriggered   SymbolState = "BUY_TRIGGERED"
	SymbolBuyBlocked     SymbolState = "BUY_BLOCKED"
)

type PortfolioState string

const (
	PortfolioNoPosition     PortfolioState = "NO_POSITION"
	PortfolioBuyRequested   PortfolioState = "BUY_REQUESTED"
	PortfolioPositionOpen   PortfolioState = "POSITION_OPEN"
	PortfolioSellRequested  PortfolioState = "SELL_REQUESTED"
	PortfolioPositionClosed PortfolioState = "POSITION_CLOSED"
)

// PositionState is the position-manager-side state reported back into TSE
// via a PositionUpdateEvent; it is a narrower vocabulary than opm's own
// PositionState since TSE only cares about lifecycle transitions.
type PositionState string

const (
	PositionBuyRequested PositionState = "BUY_REQUESTED"
	PositionLongOpen     PositionState = "LONG_OPEN"
	PositionSellRequested PositionState = "SELL_REQUESTED"
	PositionClosed       PositionState = "CLOSED"
	PositionBuyFailed    PositionState = "BUY_FAILED"
)

// SymbolContext is one watched symbol's running strategy state for the
// trading day.
type SymbolContext struct {
	Symbol         string
	WatchRank      int
	State          SymbolState
	ReferencePrice *decimal.Decimal
	TrackedLow     *decimal.Decimal
	LastQuoteAt    time.Time
	LastSequence   int
}

// PortfolioContext is the single-position gate shared across all symbols.
type PortfolioContext struct {
	State           PortfolioState
	GateOpen        bool
	ActiveSymbol    string
	MinProfitLocked bool
	SellSignaled    bool
}

// QuoteEvent is one incoming market quote tick.
type QuoteEvent struct {
	TradingDate  string
	OccurredAt   time.Time
	Symbol       string
	CurrentPrice decimal.Decimal
	Sequence     int
}

// PositionUpdateEvent carries opm's position state back into TSE.
type PositionUpdateEvent struct {
	TradingDate       string
	Symbol            string
	PositionState     PositionState
	AvgBuyPrice       decimal.Decimal
	CurrentPrice      decimal.Decimal
	CurrentProfitRate decimal.Decimal
	MaxProfitRate     decimal.Decimal
	MinProfitLocked   bool
	UpdatedAt         time.Time
}

// CommandKind discriminates the two order-placement commands TSE can emit.
type CommandKind string

const (
	CommandPlaceBuy  CommandKind = "PLACE_BUY"
	CommandPlaceSell CommandKind = "PLACE_SELL"
)

// Command is the sum-type TSE emits toward the order manager.
type Command struct {
	Kind        CommandKind
	CommandID   string
	TradingDate string
	Symbol      string
	OrderPrice  decimal.Decimal
	ReasonCode  string
}

// StrategyEvent is a structurally-typed observation emitted for persistence.
type StrategyEvent struct {
	EventType     string
	TradingDate   string
	Symbol        string
	OccurredAt    time.Time
	StrategyState string
	Metrics       map[string]any
}

// ServiceOutput accumulates everything one call into the service produced.
type ServiceOutput struct {
	Commands       []Command
	StrategyEvents []StrategyEvent
}

// DailyContext is the full per-trading-day strategy state: every watched
// symbol plus the single shared portfolio gate.
type DailyContext struct {
	TradingDate string
	Symbols     map[string]*SymbolContext
	Portfolio   PortfolioContext
}
