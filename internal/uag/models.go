// Package uag is the orchestrator (C8): it owns the engine's runtime
// state, starts and stops the quote monitoring loop, executes the
// strategy engine's buy/sell commands against the order manager and
// broker gateway, captures the per-symbol monitoring snapshot shown on
// the dashboard, and builds the envelope every ingress operation returns.
package uag

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kiatrader/internal/tse"
)

// referenceCaptureTime and marketCloseTime are the two wall-clock
// boundaries the monitoring snapshot latches against.
var (
	referenceCaptureTime = 9*time.Hour + 3*time.Minute
	marketCloseTime      = 15*time.Hour + 30*time.Minute
)

func timeOfDay(t time.Time) time.Duration {
	hh, mm, ss := t.Clock()
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
}

// RuntimeState is the engine's in-memory status, refreshed by the quote
// monitoring worker goroutine and read by MonitorStatus.
type RuntimeState struct {
	EngineState    string // IDLE, RUNNING
	TradingStartedAt *time.Time
	TradingDate    string
	DryRun         bool

	QuoteLoopState              tse.LoopState
	QuoteCyclesTotal            int
	QuoteLastPollCycleID        string
	QuoteLastCycleAt            *time.Time
	QuoteLastCyclePartial       bool
	QuoteLastQuoteCount         int
	QuoteLastErrorCount         int
	QuoteLastCommandCount       int
	QuoteLastStrategyEventCount int
	QuoteLastCycleError         string
}

// MonitoringSnapshot is one watched symbol's running dashboard row for the
// trading day. PreviousLow freezes once BuyPrice is set; PreviousHigh is
// only tracked after BuyPrice is set and only above BuyPrice*1.01, and is
// cleared every time a new buy happens.
type MonitoringSnapshot struct {
	SymbolCode string
	SymbolName string

	PriceAt0903         *decimal.Decimal
	CurrentPrice        *decimal.Decimal
	CurrentPriceAtClose *decimal.Decimal

	PreviousLowTime  *time.Time
	PreviousLowPrice *decimal.Decimal

	BuyTime  *time.Time
	BuyPrice *decimal.Decimal

	PreviousHighTime  *time.Time
	PreviousHighPrice *decimal.Decimal

	SellTime  *time.Time
	SellPrice *decimal.Decimal
}

// MonitoringRow is the JSON-ready projection of a MonitoringSnapshot.
type MonitoringRow struct {
	SymbolName          string  `json:"symbolName"`
	SymbolCode          string  `json:"symbolCode"`
	PriceAt0903         *string `json:"priceAt0903"`
	CurrentPrice        *string `json:"currentPrice"`
	PreviousLowTime     *string `json:"previousLowTime"`
	PreviousLowPrice    *string `json:"previousLowPrice"`
	BuyTime             *string `json:"buyTime"`
	BuyPrice            *string `json:"buyPrice"`
	PreviousHighTime    *string `json:"previousHighTime"`
	PreviousHighPrice   *string `json:"previousHighPrice"`
	SellTime            *string `json:"sellTime"`
	SellPrice           *string `json:"sellPrice"`
	CurrentPriceAtClose *string `json:"currentPriceAtClose"`
}

// monitoringSnapshots is the mutex-guarded per-symbol dashboard state for
// one trading day.
type monitoringSnapshots struct {
	mu   sync.RWMutex
	rows map[string]*MonitoringSnapshot
}

func newMonitoringSnapshots() *monitoringSnapshots {
	return &monitoringSnapshots{rows: make(map[string]*MonitoringSnapshot)}
}

func (m *monitoringSnapshots) forSymbol(symbol string) *MonitoringSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.rows[symbol]
	if !ok {
		snapshot = &MonitoringSnapshot{SymbolCode: symbol, SymbolName: symbol}
		m.rows[symbol] = snapshot
	}
	return snapshot
}

func (m *monitoringSnapshots) peek(symbol string) *MonitoringSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows[symbol]
}

// all returns a defensive copy of every tracked snapshot, keyed by symbol,
// suitable for serialising to disk.
func (m *monitoringSnapshots) all() map[string]*MonitoringSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*MonitoringSnapshot, len(m.rows))
	for symbol, snapshot := range m.rows {
		copied := *snapshot
		out[symbol] = &copied
	}
	return out
}

// restore replaces the tracked snapshots wholesale, e.g. from a file
// written by a previous process for the same trading date.
func (m *monitoringSnapshots) restore(rows map[string]*MonitoringSnapshot) {
	if rows == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func hms(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("15:04:05")
	return &s
}
