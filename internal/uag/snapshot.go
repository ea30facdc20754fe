package uag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"kiatrader/internal/kia"
	"kiatrader/internal/logging"
	"kiatrader/internal/tse"
)

var postBuyHighThreshold = decimal.NewFromFloat(1.01)

// applyQuote folds one broker quote into the symbol's snapshot: it
// latches the 09:03 reference, the market-close price, and tracks the
// pre-buy running low or the post-buy running high depending on whether
// a buy has happened yet for this symbol today.
func applyQuote(snapshot *MonitoringSnapshot, quote kia.MarketQuote) {
	price := quote.Price
	quoteTime := quote.AsOf

	if snapshot.PriceAt0903 == nil && timeOfDay(quoteTime) >= referenceCaptureTime {
		p := price
		snapshot.PriceAt0903 = &p
	}
	snapshot.CurrentPrice = &price

	if snapshot.BuyPrice == nil {
		if snapshot.PreviousLowPrice == nil || price.LessThanOrEqual(*snapshot.PreviousLowPrice) {
			p := price
			t := quoteTime
			snapshot.PreviousLowPrice = &p
			snapshot.PreviousLowTime = &t
		}
	} else {
		threshold := snapshot.BuyPrice.Mul(postBuyHighThreshold)
		if price.GreaterThan(threshold) {
			if snapshot.PreviousHighPrice == nil || price.GreaterThanOrEqual(*snapshot.PreviousHighPrice) {
				p := price
				t := quoteTime
				snapshot.PreviousHighPrice = &p
				snapshot.PreviousHighTime = &t
			}
		}
	}

	if snapshot.CurrentPriceAtClose == nil && timeOfDay(quoteTime) >= marketCloseTime {
		p := price
		snapshot.CurrentPriceAtClose = &p
	}
}

// applyBuy records a buy command against the snapshot and resets the
// post-buy high tracker, since it only starts meaning anything once the
// new buy price is known.
func applyBuy(snapshot *MonitoringSnapshot, price decimal.Decimal, at time.Time) {
	snapshot.BuyTime = &at
	snapshot.BuyPrice = &price
	snapshot.PreviousHighTime = nil
	snapshot.PreviousHighPrice = nil
}

// applySell records a sell command against the snapshot.
func applySell(snapshot *MonitoringSnapshot, price decimal.Decimal, at time.Time) {
	snapshot.SellTime = &at
	snapshot.SellPrice = &price
}

// updateMonitoringSnapshots folds one quote monitoring cycle's quotes and
// emitted commands into the per-symbol dashboard state.
func (s *Service) updateMonitoringSnapshots(cycle tse.QuoteCycleResult) {
	for _, quote := range cycle.Quotes {
		snapshot := s.snapshots.forSymbol(quote.Symbol)
		applyQuote(snapshot, quote)
	}

	for _, output := range cycle.Outputs {
		buySignalAt := map[string]time.Time{}
		sellSignalAt := map[string]time.Time{}
		for _, event := range output.StrategyEvents {
			switch event.EventType {
			case "BUY_SIGNAL":
				buySignalAt[event.Symbol] = event.OccurredAt
			case "SELL_SIGNAL":
				sellSignalAt[event.Symbol] = event.OccurredAt
			}
		}

		for _, command := range output.Commands {
			snapshot := s.snapshots.forSymbol(command.Symbol)
			switch command.Kind {
			case tse.CommandPlaceBuy:
				at, ok := buySignalAt[command.Symbol]
				if !ok {
					at = s.nowFn()
				}
				applyBuy(snapshot, command.OrderPrice, at)
			case tse.CommandPlaceSell:
				at, ok := sellSignalAt[command.Symbol]
				if !ok {
					at = s.nowFn()
				}
				applySell(snapshot, command.OrderPrice, at)
			}
		}
	}
}

// buildMonitoringRows projects the current snapshots onto watchSymbols'
// order. When tradingDate is non-empty and doesn't match the engine's
// active trading date, it returns an empty slice (there is nothing to
// show for a date whose snapshots were never captured in this process).
func (s *Service) buildMonitoringRows(watchSymbols []string, useClosePriceCurrent bool, tradingDate string) []MonitoringRow {
	s.mu.RLock()
	activeDate := s.state.TradingDate
	s.mu.RUnlock()
	if tradingDate != "" && activeDate != tradingDate {
		return []MonitoringRow{}
	}

	rows := make([]MonitoringRow, 0, len(watchSymbols))
	for _, symbol := range watchSymbols {
		snapshot := s.snapshots.peek(symbol)
		if snapshot == nil {
			snapshot = &MonitoringSnapshot{SymbolCode: symbol, SymbolName: symbol}
		}

		currentPrice := snapshot.CurrentPrice
		if useClosePriceCurrent && snapshot.CurrentPriceAtClose != nil {
			currentPrice = snapshot.CurrentPriceAtClose
		}

		rows = append(rows, MonitoringRow{
			SymbolName:          snapshot.SymbolName,
			SymbolCode:          snapshot.SymbolCode,
			PriceAt0903:         decimalString(snapshot.PriceAt0903),
			CurrentPrice:        decimalString(currentPrice),
			PreviousLowTime:     hms(snapshot.PreviousLowTime),
			PreviousLowPrice:    decimalString(snapshot.PreviousLowPrice),
			BuyTime:             hms(snapshot.BuyTime),
			BuyPrice:            decimalString(snapshot.BuyPrice),
			PreviousHighTime:    hms(snapshot.PreviousHighTime),
			PreviousHighPrice:   decimalString(snapshot.PreviousHighPrice),
			SellTime:            hms(snapshot.SellTime),
			SellPrice:           decimalString(snapshot.SellPrice),
			CurrentPriceAtClose: decimalString(snapshot.CurrentPriceAtClose),
		})
	}
	return rows
}

// monitoringSnapshotsDocument is the on-disk shape of the monitoring
// snapshot file: the whole per-symbol dashboard state for one trading day,
// keyed by tradingDate so a restore can tell whether it's still current.
type monitoringSnapshotsDocument struct {
	TradingDate string                         `json:"tradingDate"`
	UpdatedAt   string                         `json:"updatedAt"`
	Symbols     map[string]*MonitoringSnapshot `json:"symbols"`
}

// persistMonitoringSnapshots writes the current trading date's snapshots to
// disk, atomically, so a process restart mid-day can pick them back up. A
// failure here is logged and swallowed — it must never interrupt the quote
// monitoring cycle that triggered it.
func (s *Service) persistMonitoringSnapshots() {
	s.mu.RLock()
	tradingDate := s.state.TradingDate
	s.mu.RUnlock()
	if tradingDate == "" {
		return
	}

	document := monitoringSnapshotsDocument{
		TradingDate: tradingDate,
		UpdatedAt:   s.nowFn().UTC().Format(time.RFC3339),
		Symbols:     s.snapshots.all(),
	}
	if err := atomicWriteJSON(s.snapshotPath, document); err != nil {
		logging.Warnf("uag: persist monitoring snapshots failed path=%s err=%v", s.snapshotPath, err)
	}
}

// restoreMonitoringSnapshots loads the monitoring snapshot file, if any,
// and restores it into memory only when its tradingDate equals today —
// snapshots from a prior trading day are stale and left on disk untouched.
func (s *Service) restoreMonitoringSnapshots() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return
	}

	var document monitoringSnapshotsDocument
	if err := json.Unmarshal(data, &document); err != nil {
		logging.Warnf("uag: restore monitoring snapshots failed path=%s err=%v", s.snapshotPath, err)
		return
	}
	if document.TradingDate == "" || document.TradingDate != s.nowFn().Format("2006-01-02") {
		return
	}

	s.snapshots.restore(document.Symbols)
	s.mu.Lock()
	s.state.TradingDate = document.TradingDate
	s.mu.Unlock()
}

// atomicWriteJSON writes payload to path via a temp file in the same
// directory followed by a rename, so a reader never observes a partially
// written document.
func atomicWriteJSON(path string, payload any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
