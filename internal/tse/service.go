package tse

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"kiatrader/internal/rules"
)

const maxWatchSymbols = 20

// referenceCaptureTime is 09:03:00, expressed as seconds-of-day; quotes
// arriving before this are ignored since no reference price may be
// captured yet.
const referenceCaptureTime = 9*3600 + 3*60 + 0

func secondsOfDay(hour, minute, second int) int {
	return hour*3600 + minute*60 + second
}

// Service runs the single-position strategy state machine for one trading
// day across up to maxWatchSymbols watched symbols.
type Service struct {
	ctx       DailyContext
	scheduler *SymbolScanScheduler

	commandSequence           int
	buyEntryBlockedByDegraded bool
}

// NewService builds a Service for tradingDate watching watchSymbols in the
// given priority order (index 0 = watchRank 1, highest priority).
func NewService(tradingDate string, watchSymbols []string) (*Service, error) {
	if len(watchSymbols) < 1 || len(watchSymbols) > maxWatchSymbols {
		return nil, fmt.Errorf("tse: watch_symbols size must be between 1 and %d", maxWatchSymbols)
	}

	symbols := make(map[string]*SymbolContext, len(watchSymbols))
	for i, symbol := range watchSymbols {
		symbols[symbol] = &SymbolContext{
			Symbol:    symbol,
			WatchRank: i + 1,
			State:     SymbolWaitReference,
		}
	}

	return &Service{
		ctx: DailyContext{
			TradingDate: tradingDate,
			Symbols:     symbols,
			Portfolio:   PortfolioContext{State: PortfolioNoPosition, GateOpen: true},
		},
		scheduler: NewSymbolScanScheduler(),
	}, nil
}

// Context exposes the current daily context (read-only use by callers such
// as the quote monitoring loop, which needs the watch list).
func (s *Service) Context() *DailyContext {
	return &s.ctx
}

// OnDayChanged resets the service for a new trading day, preserving the
// watch list's relative order.
func (s *Service) OnDayChanged(tradingDate string) error {
	ordered := s.watchSymbolsByRank()
	fresh, err := NewService(tradingDate, ordered)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// SetBuyEntryBlockedByDegraded gates new buy-candidate entry while the
// quote monitoring loop is degraded.
func (s *Service) SetBuyEntryBlockedByDegraded(blocked bool) {
	s.buyEntryBlockedByDegraded = blocked
}

// BuyEntryBlockedByDegraded reports whether the degraded gate is set.
func (s *Service) BuyEntryBlockedByDegraded() bool {
	return s.buyEntryBlockedByDegraded
}

func (s *Service) watchSymbolsByRank() []string {
	ordered := make([]*SymbolContext, 0, len(s.ctx.Symbols))
	for _, sc := range s.ctx.Symbols {
		ordered = append(ordered, sc)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].WatchRank < ordered[j].WatchRank })
	symbols := make([]string, len(ordered))
	for i, sc := range ordered {
		symbols[i] = sc.Symbol
	}
	return symbols
}

// OnQuote feeds one quote tick through reference capture and, once a
// reference price is set, buy-candidate evaluation and scheduler flush.
func (s *Service) OnQuote(event QuoteEvent) ServiceOutput {
	output := ServiceOutput{}

	if event.TradingDate != s.ctx.TradingDate {
		return output
	}
	symbolCtx, ok := s.ctx.Symbols[event.Symbol]
	if !ok {
		return output
	}
	if !event.CurrentPrice.GreaterThan(decimal.Zero) {
		return output
	}
	hh, mm, ss := event.OccurredAt.Clock()
	if secondsOfDay(hh, mm, ss) < referenceCaptureTime {
		return output
	}

	symbolCtx.LastQuoteAt = event.OccurredAt
	symbolCtx.LastSequence = event.Sequence

	if symbolCtx.ReferencePrice == nil {
		price := event.CurrentPrice
		symbolCtx.ReferencePrice = &price
		symbolCtx.State = SymbolTracking
		return output
	}

	if s.buyEntryBlockedByDegraded {
		return output
	}

	if s.ctx.Portfolio.GateOpen && s.ctx.Portfolio.State == PortfolioNoPosition {
		s.evaluateBuyCandidate(symbolCtx, event, &output)
		s.flushBuyCandidate(event, &output)
	}

	return output
}

// OnPositionUpdate folds a position-manager state change into the
// portfolio gate, locking min profit and emitting a sell signal as the
// relevant thresholds are crossed.
func (s *Service) OnPositionUpdate(event PositionUpdateEvent) ServiceOutput {
	output := ServiceOutput{}

	if event.TradingDate != s.ctx.TradingDate {
		return output
	}
	if s.ctx.Portfolio.ActiveSymbol != "" && event.Symbol != s.ctx.Portfolio.ActiveSymbol {
		return output
	}

	switch event.PositionState {
	case PositionBuyRequested:
		s.ctx.Portfolio.State = PortfolioBuyRequested
	case PositionLongOpen:
		s.ctx.Portfolio.State = PortfolioPositionOpen
	case PositionSellRequested:
		s.ctx.Portfolio.State = PortfolioSellRequested
	case PositionClosed:
		s.ctx.Portfolio.State = PortfolioPositionClosed
	case PositionBuyFailed:
		s.ctx.Portfolio.State = PortfolioNoPosition
		s.ctx.Portfolio.GateOpen = true
		s.ctx.Portfolio.ActiveSymbol = ""
	}

	if rules.ShouldLockMinProfit(event.CurrentProfitRate) && !s.ctx.Portfolio.MinProfitLocked {
		s.ctx.Portfolio.MinProfitLocked = true
		output.StrategyEvents = append(output.StrategyEvents, StrategyEvent{
			EventType:     "MIN_PROFIT_LOCKED",
			TradingDate:   event.TradingDate,
			Symbol:        event.Symbol,
			OccurredAt:    event.UpdatedAt,
			StrategyState: string(s.ctx.Portfolio.State),
			Metrics:       map[string]any{"currentProfitRate": event.CurrentProfitRate},
		})
	}

	if rules.ShouldEmitSellSignal(s.ctx.Portfolio.MinProfitLocked, event.CurrentProfitRate, event.MaxProfitRate) && !s.ctx.Portfolio.SellSignaled {
		s.ctx.Portfolio.SellSignaled = true
		preservation, _ := rules.ProfitPreservationRate(event.CurrentProfitRate, event.MaxProfitRate)
		command := Command{
			Kind:        CommandPlaceSell,
			CommandID:   s.nextCommandID(event.TradingDate, event.Symbol, "SELL"),
			TradingDate: event.TradingDate,
			Symbol:      event.Symbol,
			OrderPrice:  event.CurrentPrice,
			ReasonCode:  "TSE_PROFIT_PRESERVATION_BREAK",
		}
		output.Commands = append(output.Commands, command)
		output.StrategyEvents = append(output.StrategyEvents, StrategyEvent{
			EventType:     "SELL_SIGNAL",
			TradingDate:   event.TradingDate,
			Symbol:        event.Symbol,
			OccurredAt:    event.UpdatedAt,
			StrategyState: string(s.ctx.Portfolio.State),
			Metrics: map[string]any{
				"currentProfitRate":      event.CurrentProfitRate,
				"maxProfitRate":          event.MaxProfitRate,
				"profitPreservationRate": preservation,
			},
		})
	}

	return output
}

func (s *Service) evaluateBuyCandidate(symbolCtx *SymbolContext, event QuoteEvent, output *ServiceOutput) {
	if symbolCtx.ReferencePrice == nil {
		return
	}

	dropRate, err := rules.DropRate(*symbolCtx.ReferencePrice, event.CurrentPrice)
	if err != nil {
		return
	}

	if (symbolCtx.State == SymbolTracking || symbolCtx.State == SymbolBuyCandidate) && rules.ShouldEnterBuyCandidate(dropRate) {
		if symbolCtx.State != SymbolBuyCandidate {
			symbolCtx.State = SymbolBuyCandidate
			price := event.CurrentPrice
			symbolCtx.TrackedLow = &price
			output.StrategyEvents = append(output.StrategyEvents, StrategyEvent{
				EventType:     "BUY_CANDIDATE_ENTERED",
				TradingDate:   event.TradingDate,
				Symbol:        event.Symbol,
				OccurredAt:    event.OccurredAt,
				StrategyState: string(symbolCtx.State),
				Metrics:       map[string]any{"dropRate": dropRate},
			})
		}
	}

	if symbolCtx.State != SymbolBuyCandidate || symbolCtx.TrackedLow == nil {
		return
	}

	if rules.ShouldUpdateTrackedLow(event.CurrentPrice, *symbolCtx.TrackedLow) {
		price := event.CurrentPrice
		symbolCtx.TrackedLow = &price
		output.StrategyEvents = append(output.StrategyEvents, StrategyEvent{
			EventType:     "LOCAL_LOW_UPDATED",
			TradingDate:   event.TradingDate,
			Symbol:        event.Symbol,
			OccurredAt:    event.OccurredAt,
			StrategyState: string(symbolCtx.State),
			Metrics:       map[string]any{"trackedLow": *symbolCtx.TrackedLow},
		})
	}

	reboundRate, err := rules.ReboundRate(*symbolCtx.TrackedLow, event.CurrentPrice)
	if err != nil {
		return
	}
	if rules.ShouldTriggerReboundBuy(reboundRate) {
		s.scheduler.EnqueueCandidate(BuyCandidate{
			OccurredAt:   event.OccurredAt,
			Sequence:     event.Sequence,
			WatchRank:    symbolCtx.WatchRank,
			Symbol:       event.Symbol,
			CurrentPrice: event.CurrentPrice,
			ReboundRate:  reboundRate,
		})
	}
}

func (s *Service) flushBuyCandidate(event QuoteEvent, output *ServiceOutput) {
	if !s.ctx.Portfolio.GateOpen || s.ctx.Portfolio.State != PortfolioNoPosition {
		return
	}

	candidate, ok := s.scheduler.PopNext()
	if !ok {
		return
	}

	symbolCtx, ok := s.ctx.Symbols[candidate.Symbol]
	if !ok || symbolCtx.State != SymbolBuyCandidate {
		return
	}

	s.ctx.Portfolio.GateOpen = false
	s.ctx.Portfolio.State = PortfolioBuyRequested
	s.ctx.Portfolio.ActiveSymbol = candidate.Symbol
	symbolCtx.State = SymbolBuyTriggered

	command := Command{
		Kind:        CommandPlaceBuy,
		CommandID:   s.nextCommandID(event.TradingDate, candidate.Symbol, "BUY"),
		TradingDate: event.TradingDate,
		Symbol:      candidate.Symbol,
		OrderPrice:  candidate.CurrentPrice,
		ReasonCode:  "TSE_REBOUND_BUY_SIGNAL",
	}
	output.Commands = append(output.Commands, command)
	output.StrategyEvents = append(output.StrategyEvents, StrategyEvent{
		EventType:     "BUY_SIGNAL",
		TradingDate:   event.TradingDate,
		Symbol:        candidate.Symbol,
		OccurredAt:    candidate.OccurredAt,
		StrategyState: string(symbolCtx.State),
		Metrics:       map[string]any{"reboundRate": candidate.ReboundRate, "trackedLow": *symbolCtx.TrackedLow},
	})
}

func (s *Service) nextCommandID(tradingDate, symbol, side string) string {
	s.commandSequence++
	return fmt.Sprintf("%s-%s-%s-%d", tradingDate, symbol, side, s.commandSequence)
}
