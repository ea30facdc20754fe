package uag

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kiatrader/internal/csm"
	"kiatrader/internal/kia"
	"kiatrader/internal/logging"
	"kiatrader/internal/metrics"
	"kiatrader/internal/opm"
	"kiatrader/internal/prp"
	"kiatrader/internal/tse"
)

var defaultWatchSymbols = []string{"005930"}

// Service is the orchestrator: it owns runtime state, the settings/
// credentials repository, the running quote monitoring loop (if any), and
// the day's monitoring snapshots, and is the single entry point every
// ingress operation calls into.
type Service struct {
	repo         *csm.Repository
	csmService   *csm.Service
	prpDBPath    string
	snapshotPath string

	mu    sync.RWMutex
	state RuntimeState

	snapshots *monitoringSnapshots

	quoteLoopMu     sync.Mutex
	quoteLoop       *tse.QuoteMonitoringLoop
	quoteLoopStopCh chan struct{}
	quoteLoopWg     sync.WaitGroup
	orderGateway    kia.Gateway

	nowFn func() time.Time
}

// NewService wires a Service over the given runtime file paths, creating
// default settings/credentials files on first run.
func NewService(settingsPath, credentialsPath, prpDBPath string) (*Service, error) {
	repo := csm.NewRepository(settingsPath, credentialsPath)
	service := &Service{
		repo:         repo,
		csmService:   csm.NewService(repo),
		prpDBPath:    prpDBPath,
		snapshotPath: filepath.Join(filepath.Dir(settingsPath), "monitoring_snapshots.json"),
		snapshots:    newMonitoringSnapshots(),
		nowFn:        time.Now,
		state: RuntimeState{
			EngineState:    "IDLE",
			QuoteLoopState: tse.LoopStopped,
		},
	}
	if err := service.ensureRuntimeFiles(); err != nil {
		return nil, err
	}
	service.restoreMonitoringSnapshots()
	return service, nil
}

// ensureRuntimeFiles seeds a default mock-mode settings file and an empty
// credentials file the first time the engine runs against a fresh data
// directory, so every other operation can assume both files exist.
func (s *Service) ensureRuntimeFiles() error {
	if _, err := s.repo.ReadSettings(); err != nil {
		now := s.nowFn().UTC().Format(time.RFC3339)
		defaults := csm.SettingsFile{
			Version:           "v0.1.0",
			UpdatedAt:         now,
			WatchSymbols:      defaultWatchSymbols,
			Mode:              string(csm.ModeMock),
			LiveModeConfirmed: false,
			CredentialsRef:    "cred-default",
		}
		if err := s.repo.WriteSettings(defaults); err != nil {
			return err
		}
	}

	if _, err := s.repo.ReadCredentials(); err != nil {
		now := s.nowFn().UTC().Format(time.RFC3339)
		defaults := csm.CredentialsFile{
			CredentialsID: "cred-default",
			UpdatedAt:     now,
			Provider:      "kiwoom-rest",
		}
		if err := s.repo.WriteCredentials(defaults); err != nil {
			return err
		}
	}

	return nil
}

// SaveSettings validates and persists runtime settings plus credentials.
func (s *Service) SaveSettings(request csm.SaveSettingsRequest) (csm.SaveSettingsResult, error) {
	return s.csmService.SaveSettings(request)
}

// SwitchMode arbitrates a mock/live mode switch against the current engine
// state, hardcoding the open-orders/open-positions guard fields to zero. The
// engine state is passed through, so csm refuses the switch while the
// engine is RUNNING.
func (s *Service) SwitchMode(targetMode string, liveModeConfirmed bool) (csm.SwitchModeResult, error) {
	s.mu.RLock()
	engineState := s.state.EngineState
	s.mu.RUnlock()

	guard := csm.TradingGuardStatus{
		OpenOrders:    0,
		OpenPositions: 0,
		EngineState:   engineState,
	}
	return s.csmService.SwitchMode(targetMode, liveModeConfirmed, guard)
}

// GetMaskedCredentials returns the currently stored credential, masked.
func (s *Service) GetMaskedCredentials() (csm.MaskedCredential, error) {
	credentials, err := s.repo.ReadCredentials()
	if err != nil {
		return csm.MaskedCredential{}, err
	}
	credential := csm.Credential{
		AppKey:    credentials.Credential.AppKey,
		AppSecret: credentials.Credential.AppSecret,
		AccountNo: credentials.Credential.AccountNo,
		UserID:    credentials.Credential.UserID,
	}
	return csm.ToMaskedCredential(credential), nil
}

// StartTrading moves the engine to RUNNING for tradingDate and starts the
// quote monitoring loop. It refuses if the engine is already running.
func (s *Service) StartTrading(tradingDate string, dryRun bool) (StartTradingResult, error) {
	s.mu.Lock()
	if s.state.EngineState == "RUNNING" {
		s.mu.Unlock()
		return StartTradingResult{}, ErrEngineAlreadyRunning
	}

	now := s.nowFn()
	if tradingDate == "" {
		tradingDate = now.Format("2006-01-02")
	}
	s.state.EngineState = "RUNNING"
	s.state.TradingStartedAt = &now
	s.state.TradingDate = tradingDate
	s.state.DryRun = dryRun
	s.mu.Unlock()

	metrics.SetEngineRunning(true)

	if err := s.startQuoteMonitoringLoop(tradingDate); err != nil {
		s.mu.Lock()
		s.state.EngineState = "IDLE"
		s.mu.Unlock()
		metrics.SetEngineRunning(false)
		return StartTradingResult{}, err
	}

	return StartTradingResult{
		EngineState: "RUNNING",
		AcceptedAt:  now.Format(time.RFC3339),
		TradingDate: tradingDate,
		DryRun:      dryRun,
		SafeMode:    true,
	}, nil
}

// Shutdown moves the engine back to IDLE and stops the quote monitoring
// loop if one is running.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.state.EngineState = "IDLE"
	s.mu.Unlock()
	metrics.SetEngineRunning(false)

	s.quoteLoopMu.Lock()
	s.stopQuoteMonitoringLoopLocked()
	s.quoteLoopMu.Unlock()
}

// MonitorStatus reports the engine's current runtime state, quote-loop
// health, and per-symbol dashboard rows.
func (s *Service) MonitorStatus() (MonitorStatusResult, error) {
	settings, err := s.repo.ReadSettings()
	if err != nil {
		return MonitorStatusResult{}, err
	}

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	var startedAt *string
	if state.TradingStartedAt != nil {
		v := state.TradingStartedAt.Format(time.RFC3339)
		startedAt = &v
	}
	var lastCycleAt *string
	if state.QuoteLastCycleAt != nil {
		v := state.QuoteLastCycleAt.Format(time.RFC3339)
		lastCycleAt = &v
	}

	return MonitorStatusResult{
		EngineState:    state.EngineState,
		Mode:           settings.Mode,
		WatchSymbols:   settings.WatchSymbols,
		StartedAt:      startedAt,
		TradingDate:    state.TradingDate,
		DryRun:         state.DryRun,
		SafeMode:       true,
		OpenOrders:     0,
		OpenPositions:  0,
		MonitoringRows: s.buildMonitoringRows(settings.WatchSymbols, false, ""),
		QuoteMonitoring: QuoteMonitoringStatus{
			LoopState:              string(state.QuoteLoopState),
			CyclesTotal:            state.QuoteCyclesTotal,
			LastPollCycleID:        state.QuoteLastPollCycleID,
			LastCycleAt:            lastCycleAt,
			LastCyclePartial:       state.QuoteLastCyclePartial,
			LastQuoteCount:         state.QuoteLastQuoteCount,
			LastErrorCount:         state.QuoteLastErrorCount,
			LastCommandCount:       state.QuoteLastCommandCount,
			LastStrategyEventCount: state.QuoteLastStrategyEventCount,
			LastCycleError:         state.QuoteLastCycleError,
		},
	}, nil
}

// GetDailyReport generates (or reuses) tradingDate's aggregate P&L report.
func (s *Service) GetDailyReport(tradingDate string) (DailyReportResult, error) {
	repo, err := prp.Open(s.prpDBPath)
	if err != nil {
		return DailyReportResult{}, err
	}
	defer repo.Close()

	report, err := repo.GenerateDailyReport(tradingDate)
	if err != nil {
		return DailyReportResult{}, err
	}

	settings, err := s.repo.ReadSettings()
	if err != nil {
		return DailyReportResult{}, err
	}

	return DailyReportResult{
		TradingDate:     report.TradingDate,
		TotalBuyAmount:  report.TotalBuyAmount.String(),
		TotalSellAmount: report.TotalSellAmount.String(),
		TotalSellTax:    report.TotalSellTax.String(),
		TotalSellFee:    report.TotalSellFee.String(),
		TotalNetPnl:     report.TotalNetPnl.String(),
		TotalReturnRate: report.TotalReturnRate.String(),
		GeneratedAt:     report.GeneratedAt.Format(time.RFC3339),
		Anomalies:       report.Anomalies,
		MonitoringRows:  s.buildMonitoringRows(settings.WatchSymbols, true, tradingDate),
	}, nil
}

// GetTradesReport lists tradingDate's FIFO-matched trade details, lazily
// generating the daily report first if nothing has been matched yet.
func (s *Service) GetTradesReport(tradingDate string) (TradesReportResult, error) {
	repo, err := prp.Open(s.prpDBPath)
	if err != nil {
		return TradesReportResult{}, err
	}
	defer repo.Close()

	details, err := repo.ListTradeDetails(tradingDate, "")
	if err != nil {
		return TradesReportResult{}, err
	}
	if len(details) == 0 {
		if _, err := repo.GenerateDailyReport(tradingDate); err != nil {
			return TradesReportResult{}, err
		}
		if details, err = repo.ListTradeDetails(tradingDate, ""); err != nil {
			return TradesReportResult{}, err
		}
	}

	settings, err := s.repo.ReadSettings()
	if err != nil {
		return TradesReportResult{}, err
	}

	items := make([]TradeDetailView, 0, len(details))
	for _, d := range details {
		items = append(items, TradeDetailView{
			ID:             d.ID,
			Symbol:         d.Symbol,
			BuyExecutedAt:  d.BuyExecutedAt.Format(time.RFC3339),
			SellExecutedAt: d.SellExecutedAt.Format(time.RFC3339),
			Quantity:       d.Quantity,
			BuyPrice:       d.BuyPrice.String(),
			SellPrice:      d.SellPrice.String(),
			BuyAmount:      d.BuyAmount.String(),
			SellAmount:     d.SellAmount.String(),
			SellTax:        d.SellTax.String(),
			SellFee:        d.SellFee.String(),
			NetPnl:         d.NetPnl.String(),
			ReturnRate:     d.ReturnRate.String(),
		})
	}

	return TradesReportResult{
		TradingDate:    tradingDate,
		Count:          len(items),
		Items:          items,
		MonitoringRows: s.buildMonitoringRows(settings.WatchSymbols, true, tradingDate),
	}, nil
}

// ============================================
// Quote monitoring loop lifecycle
// ============================================

func watchSymbolsOrDefault(watchSymbols []string) []string {
	if len(watchSymbols) == 0 {
		return defaultWatchSymbols
	}
	return watchSymbols
}

// startQuoteMonitoringLoop stops any previously running loop, rebuilds a
// fresh strategy service and broker gateway for tradingDate, runs the
// reference-price backfill, then launches the worker goroutine.
func (s *Service) startQuoteMonitoringLoop(tradingDate string) error {
	s.quoteLoopMu.Lock()
	defer s.quoteLoopMu.Unlock()

	s.stopQuoteMonitoringLoopLocked()

	settings, err := s.repo.ReadSettings()
	if err != nil {
		return err
	}
	watchSymbols := watchSymbolsOrDefault(settings.WatchSymbols)

	mode := kia.ModeMock
	if settings.Mode == string(csm.ModeLive) {
		mode = kia.ModeLive
	}

	tseService, err := tse.NewService(tradingDate, watchSymbols)
	if err != nil {
		return err
	}

	resolver := kia.NewEndpointResolver(s.repo)
	client := kia.NewRoutingAPIClient(resolver, kia.RestyTransport(), kia.LiveClientConfig{})
	gateway := kia.NewDefaultGateway(client)
	s.orderGateway = gateway

	s.backfillReferencePrices(tseService, gateway, mode, watchSymbols)

	loop := tse.NewQuoteMonitoringLoop(tseService, gateway, tse.QuoteMonitoringConfig{Mode: mode})
	loop.Start()
	s.quoteLoop = loop
	s.quoteLoopStopCh = make(chan struct{})

	s.mu.Lock()
	s.state.QuoteLoopState = tse.LoopRunning
	s.state.QuoteLastCycleError = ""
	s.mu.Unlock()
	metrics.SetQuoteLoopState(string(tse.LoopRunning))

	s.quoteLoopWg.Add(1)
	go s.quoteMonitorWorker(loop, s.quoteLoopStopCh)
	return nil
}

// backfillReferencePrices is the §4.11 best-effort backfill: when the
// engine starts after the 09:03 capture window, each watched symbol that
// hasn't already captured its reference price gets one fetched directly
// from the gateway, so it isn't stuck waiting for a quote tick that will
// never cross 09:03 again today. Failures are swallowed — this is an
// optimization, not a precondition for trading to proceed.
func (s *Service) backfillReferencePrices(tseService *tse.Service, gateway kia.Gateway, mode kia.Mode, watchSymbols []string) {
	now := s.nowFn()
	if timeOfDay(now) < referenceCaptureTime {
		return
	}

	ctx := tseService.Context()
	for _, symbol := range watchSymbols {
		symbolCtx, ok := ctx.Symbols[symbol]
		if !ok || symbolCtx.ReferencePrice != nil {
			continue
		}
		price, err := gateway.FetchReferencePrice0903(mode, symbol)
		if err != nil || price == nil {
			continue
		}
		p := *price
		symbolCtx.ReferencePrice = &p
		symbolCtx.State = tse.SymbolTracking
	}
}

// stopQuoteMonitoringLoopLocked stops the running loop and waits for its
// worker goroutine to exit. Callers must hold quoteLoopMu.
func (s *Service) stopQuoteMonitoringLoopLocked() {
	if s.quoteLoopStopCh != nil {
		close(s.quoteLoopStopCh)
	}
	s.quoteLoopWg.Wait()

	if s.quoteLoop != nil {
		s.quoteLoop.Stop()
	}
	s.quoteLoop = nil
	s.quoteLoopStopCh = nil
	s.orderGateway = nil

	s.mu.Lock()
	s.state.QuoteLoopState = tse.LoopStopped
	s.mu.Unlock()
	metrics.SetQuoteLoopState(string(tse.LoopStopped))
}

// quoteMonitorWorker runs cycles on loop's configured cadence until the
// engine stops running or stopCh closes.
func (s *Service) quoteMonitorWorker(loop *tse.QuoteMonitoringLoop, stopCh chan struct{}) {
	defer s.quoteLoopWg.Done()

	interval := loop.PollIntervalDuration()
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		s.mu.RLock()
		engineRunning := s.state.EngineState == "RUNNING"
		dryRun := s.state.DryRun
		s.mu.RUnlock()
		if !engineRunning {
			return
		}

		cycleStartedAt := s.nowFn()
		cycle := loop.RunCycle()
		s.updateMonitoringSnapshots(cycle)
		s.persistMonitoringSnapshots()
		elapsed := s.nowFn().Sub(cycleStartedAt).Seconds()
		metrics.RecordCycle(cycle.QuoteCount, cycle.ErrorCount, elapsed)
		metrics.SetQuoteLoopState(string(cycle.State))

		commandCount, strategyEventCount := 0, 0
		for _, output := range cycle.Outputs {
			commandCount += len(output.Commands)
			strategyEventCount += len(output.StrategyEvents)
		}

		now := s.nowFn()
		s.mu.Lock()
		s.state.QuoteLoopState = cycle.State
		s.state.QuoteCyclesTotal++
		s.state.QuoteLastPollCycleID = cycle.PollCycleID
		s.state.QuoteLastCycleAt = &now
		s.state.QuoteLastCyclePartial = cycle.Partial
		s.state.QuoteLastQuoteCount = cycle.QuoteCount
		s.state.QuoteLastErrorCount = cycle.ErrorCount
		s.state.QuoteLastCycleError = cycle.FetchError
		s.state.QuoteLastCommandCount = commandCount
		s.state.QuoteLastStrategyEventCount = strategyEventCount
		s.mu.Unlock()

		if !dryRun {
			s.executeCycleCommands(cycle.Outputs)
		}

		select {
		case <-stopCh:
			return
		case <-time.After(interval):
		}
	}
}

// ============================================
// Command execution
// ============================================

func (s *Service) executeCycleCommands(outputs []tse.ServiceOutput) {
	for _, output := range outputs {
		for _, command := range output.Commands {
			s.executeTseCommand(command)
		}
	}
}

// executeTseCommand turns one strategy command into an order: it creates
// the order aggregate, moves it to SUBMITTED, submits it to the broker
// gateway, and resolves the final ACCEPTED/REJECTED status.
func (s *Service) executeTseCommand(command tse.Command) {
	gateway := s.orderGateway
	if gateway == nil {
		return
	}

	mode, accountNo := s.readOrderExecutionContext()

	side := opm.SideBuy
	sideLabel := "BUY"
	if command.Kind == tse.CommandPlaceSell {
		side = opm.SideSell
		sideLabel = "SELL"
	}

	quantity := s.resolveOrderQuantity(sideLabel, command.OrderPrice)
	if quantity <= 0 {
		return
	}

	repo, err := prp.Open(s.prpDBPath)
	if err != nil {
		logging.Warnf("uag: open position store failed symbol=%s err=%v", command.Symbol, err)
		return
	}
	defer repo.Close()

	opmService := opm.NewService(repo)
	now := s.nowFn()

	order, err := opmService.CreateOrder(command.TradingDate, command.Symbol, side, command.OrderPrice, quantity, now, command.CommandID)
	if err != nil {
		logging.Warnf("uag: create order failed symbol=%s side=%s err=%v", command.Symbol, sideLabel, err)
		return
	}

	order, err = opmService.MoveOrderStatus(order, opm.StatusSubmitted, s.nowFn(), "", "")
	if err != nil {
		logging.Warnf("uag: move order to submitted failed order=%s err=%v", order.OrderAggregateID, err)
		return
	}

	orderPrice := command.OrderPrice
	result, err := gateway.SubmitOrder(kia.SubmitOrderRequest{
		Mode:          mode,
		AccountNo:     accountNo,
		Symbol:        command.Symbol,
		Side:          sideLabel,
		OrderType:     "LIMIT",
		Price:         &orderPrice,
		Quantity:      quantity,
		ClientOrderID: order.ClientOrderID,
	})
	if err != nil {
		if _, moveErr := opmService.MoveOrderStatus(order, opm.StatusRejected, s.nowFn(), "", "OPM_KIA_SUBMIT_FAILED"); moveErr != nil {
			logging.Warnf("uag: move order to rejected failed order=%s err=%v", order.OrderAggregateID, moveErr)
		}
		metrics.RecordOrderSubmission(sideLabel, "submit_failed")
		logging.Warnf("uag: order submit failed symbol=%s side=%s err=%v", command.Symbol, sideLabel, err)
		return
	}

	finalStatus, reasonCode, outcome := opm.StatusRejected, "OPM_KIA_ORDER_REJECTED", "rejected"
	if result.Status == "ACCEPTED" {
		finalStatus, reasonCode, outcome = opm.StatusAccepted, "", "accepted"
	}
	if _, err := opmService.MoveOrderStatus(order, finalStatus, s.nowFn(), result.BrokerOrderID, reasonCode); err != nil {
		logging.Warnf("uag: move order to %s failed order=%s err=%v", finalStatus, order.OrderAggregateID, err)
	}
	metrics.RecordOrderSubmission(sideLabel, outcome)
}

// readOrderExecutionContext reads the mode and account number an order
// should be submitted under, defaulting the account number the same way
// the broker sandbox does when none has been configured yet.
func (s *Service) readOrderExecutionContext() (kia.Mode, string) {
	mode := kia.ModeMock
	if settings, err := s.repo.ReadSettings(); err == nil && settings.Mode == string(csm.ModeLive) {
		mode = kia.ModeLive
	}

	accountNo := "00000000"
	if credentials, err := s.repo.ReadCredentials(); err == nil {
		if trimmed := strings.TrimSpace(credentials.Credential.AccountNo); trimmed != "" {
			accountNo = trimmed
		}
	}

	return mode, accountNo
}

// resolveOrderQuantity sizes a BUY by the configured budget divided by the
// order price, rounded down to a whole share; a missing or unparsable
// budget permissively defaults to one share rather than blocking the buy.
// SELL quantity is fixed at one share regardless of price and of how many
// shares the preceding BUY acquired.
func (s *Service) resolveOrderQuantity(side string, orderPrice decimal.Decimal) int {
	if side != "BUY" {
		return 1
	}
	if orderPrice.Sign() <= 0 {
		return 0
	}

	settings, err := s.repo.ReadSettings()
	if err != nil || settings.BuyBudget == nil {
		return 1
	}

	text := strings.ReplaceAll(strings.TrimSpace(*settings.BuyBudget), ",", "")
	if text == "" {
		return 1
	}

	budget, err := decimal.NewFromString(text)
	if err != nil {
		return 1
	}
	if budget.Sign() <= 0 {
		return 0
	}

	quantity := budget.Div(orderPrice).Truncate(0)
	return int(quantity.IntPart())
}
