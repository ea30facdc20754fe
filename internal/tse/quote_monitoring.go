package tse

import (
	"fmt"
	"sort"
	"time"

	"kiatrader/internal/kia"
	"kiatrader/internal/logging"
)

type LoopState string

const (
	LoopRunning  LoopState = "RUNNING"
	LoopDegraded LoopState = "DEGRADED"
	LoopStopped  LoopState = "STOPPED"
)

// Default cadence/health tuning; callers may override per QuoteMonitoringConfig.
const (
	DefaultPollIntervalMs           = 3000
	DefaultPollTimeoutMs            = 3000
	DefaultConsecutiveErrorThreshold = 3
	DefaultRecoverySuccessThreshold  = 2
)

// QuoteMonitoringConfig parametrizes one monitoring loop's cadence and
// health thresholds.
type QuoteMonitoringConfig struct {
	Mode                      kia.Mode
	PollIntervalMs            int
	PollTimeoutMs             int
	ConsecutiveErrorThreshold int
	RecoverySuccessThreshold  int
}

// WithDefaults fills any zero-valued fields with the package defaults.
func (c QuoteMonitoringConfig) WithDefaults() QuoteMonitoringConfig {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.PollTimeoutMs <= 0 {
		c.PollTimeoutMs = DefaultPollTimeoutMs
	}
	if c.ConsecutiveErrorThreshold <= 0 {
		c.ConsecutiveErrorThreshold = DefaultConsecutiveErrorThreshold
	}
	if c.RecoverySuccessThreshold <= 0 {
		c.RecoverySuccessThreshold = DefaultRecoverySuccessThreshold
	}
	return c
}

// QuoteCycleResult is the outcome of a single monitoring cycle.
type QuoteCycleResult struct {
	PollCycleID string
	State       LoopState
	Partial     bool
	QuoteCount  int
	ErrorCount  int
	Quotes      []kia.MarketQuote
	Outputs     []ServiceOutput
	FetchError  string
}

// QuoteMonitoringLoop polls the broker gateway for the watch list's quotes
// on a fixed cadence, feeding each quote into the strategy service and
// tracking loop health (consecutive failures degrade it; consecutive
// successes recover it).
type QuoteMonitoringLoop struct {
	service *Service
	gateway kia.Gateway
	config  QuoteMonitoringConfig
	nowFn   func() time.Time
	sleepFn func(time.Duration)

	state              LoopState
	consecutiveErrors  int
	consecutiveSuccess int
	cycleSeq           int
}

// NewQuoteMonitoringLoop wires a loop around service and gateway.
func NewQuoteMonitoringLoop(service *Service, gateway kia.Gateway, config QuoteMonitoringConfig) *QuoteMonitoringLoop {
	return &QuoteMonitoringLoop{
		service: service,
		gateway: gateway,
		config:  config.WithDefaults(),
		nowFn:   time.Now,
		sleepFn: time.Sleep,
		state:   LoopStopped,
	}
}

// PollIntervalDuration is the configured inter-cycle sleep.
func (l *QuoteMonitoringLoop) PollIntervalDuration() time.Duration {
	return time.Duration(l.config.PollIntervalMs) * time.Millisecond
}

// State reports the loop's current health state.
func (l *QuoteMonitoringLoop) State() LoopState {
	return l.state
}

// Start (re)arms the loop into RUNNING, clearing health counters and the
// strategy service's degraded gate.
func (l *QuoteMonitoringLoop) Start() {
	l.state = LoopRunning
	l.consecutiveErrors = 0
	l.consecutiveSuccess = 0
	l.cycleSeq = 0
	l.service.SetBuyEntryBlockedByDegraded(false)
}

// Stop halts the loop and clears the degraded gate.
func (l *QuoteMonitoringLoop) Stop() {
	l.state = LoopStopped
	l.service.SetBuyEntryBlockedByDegraded(false)
}

// RunCycle executes exactly one poll-and-feed cycle, auto-starting the loop
// if it was STOPPED.
func (l *QuoteMonitoringLoop) RunCycle() QuoteCycleResult {
	if l.state == LoopStopped {
		l.Start()
	}

	l.cycleSeq++
	now := l.nowFn()
	pollCycleID := fmt.Sprintf("poll-%s-%s-%03d", l.service.Context().TradingDate, now.Format("150405"), l.cycleSeq)

	result, err := l.gateway.FetchQuotesBatch(kia.PollQuotesRequest{
		Mode:        l.config.Mode,
		Symbols:     l.watchSymbols(),
		PollCycleID: pollCycleID,
		TimeoutMs:   l.config.PollTimeoutMs,
	})
	if err != nil {
		l.onCycleFailure()
		logging.Warnf("tse: quote cycle fetch failed cycle=%s state=%s err=%v", pollCycleID, l.state, err)
		return QuoteCycleResult{
			PollCycleID: pollCycleID,
			State:       l.state,
			Partial:     true,
			ErrorCount:  1,
			FetchError:  err.Error(),
		}
	}

	outputs := make([]ServiceOutput, 0, len(result.Quotes))
	for index, quote := range result.Quotes {
		output := l.service.OnQuote(QuoteEvent{
			TradingDate:  l.service.Context().TradingDate,
			OccurredAt:   quote.AsOf,
			Symbol:       quote.Symbol,
			CurrentPrice: quote.Price,
			Sequence:     index + 1,
		})
		outputs = append(outputs, output)
	}

	if result.Partial {
		l.onCycleFailure()
	} else {
		l.onCycleSuccess()
	}

	return QuoteCycleResult{
		PollCycleID: pollCycleID,
		State:       l.state,
		Partial:     result.Partial,
		QuoteCount:  len(result.Quotes),
		ErrorCount:  len(result.Errors),
		Quotes:      result.Quotes,
		Outputs:     outputs,
	}
}

// RunForever drives cycles until stopped (stopSignal closed or closed
// concurrently) or maxCycles is reached (0 means unbounded), sleeping
// PollIntervalMs between cycles.
func (l *QuoteMonitoringLoop) RunForever(stopSignal <-chan struct{}, maxCycles int) []QuoteCycleResult {
	if l.state == LoopStopped {
		l.Start()
	}

	var cycles []QuoteCycleResult
	for l.state == LoopRunning || l.state == LoopDegraded {
		select {
		case <-stopSignal:
			l.Stop()
			return cycles
		default:
		}

		if maxCycles > 0 && len(cycles) >= maxCycles {
			break
		}
		cycles = append(cycles, l.RunCycle())
		if l.state == LoopStopped {
			break
		}

		select {
		case <-stopSignal:
			l.Stop()
			return cycles
		case <-time.After(l.PollIntervalDuration()):
		}
	}
	return cycles
}

func (l *QuoteMonitoringLoop) watchSymbols() []string {
	ctx := l.service.Context()
	contexts := make([]*SymbolContext, 0, len(ctx.Symbols))
	for _, sc := range ctx.Symbols {
		contexts = append(contexts, sc)
	}
	sort.Slice(contexts, func(i, j int) bool { return contexts[i].WatchRank < contexts[j].WatchRank })

	symbols := make([]string, len(contexts))
	for i, sc := range contexts {
		symbols[i] = sc.Symbol
	}
	return symbols
}

func (l *QuoteMonitoringLoop) onCycleSuccess() {
	l.consecutiveErrors = 0
	l.consecutiveSuccess++
	if l.state == LoopDegraded && l.consecutiveSuccess >= l.config.RecoverySuccessThreshold {
		l.state = LoopRunning
		l.service.SetBuyEntryBlockedByDegraded(false)
		logging.Infof("tse: quote loop recovered to RUNNING")
	}
}

func (l *QuoteMonitoringLoop) onCycleFailure() {
	l.consecutiveSuccess = 0
	l.consecutiveErrors++
	if l.consecutiveErrors >= l.config.ConsecutiveErrorThreshold {
		if l.state != LoopDegraded {
			logging.Warnf("tse: quote loop degraded after %d consecutive failures", l.consecutiveErrors)
		}
		l.state = LoopDegraded
		l.service.SetBuyEntryBlockedByDegraded(true)
	}
}
