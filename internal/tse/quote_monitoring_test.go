package tse

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiatrader/internal/kia"
)

type fakeGateway struct {
	batches []kia.PollQuotesResult
	errs    []error
	calls   int
}

func (f *fakeGateway) FetchQuote(req kia.FetchQuoteRequest) (kia.MarketQuote, error) {
	return kia.MarketQuote{}, nil
}

func (f *fakeGateway) FetchReferencePrice0903(mode kia.Mode, symbol string) (*decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeGateway) FetchQuotesBatch(req kia.PollQuotesRequest) (kia.PollQuotesResult, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return kia.PollQuotesResult{}, f.errs[idx]
	}
	if idx < len(f.batches) {
		return f.batches[idx], nil
	}
	return kia.PollQuotesResult{PollCycleID: req.PollCycleID}, nil
}

func (f *fakeGateway) SubmitOrder(req kia.SubmitOrderRequest) (kia.OrderResult, error) {
	return kia.OrderResult{}, nil
}

func (f *fakeGateway) FetchExecution(req kia.FetchExecutionRequest) (kia.ExecutionResult, error) {
	return kia.ExecutionResult{}, nil
}

func (f *fakeGateway) FetchPosition(req kia.FetchPositionRequest) ([]kia.PositionSnapshot, error) {
	return nil, nil
}

func TestQuoteMonitoringLoop_RunCycle_FeedsQuotesIntoService(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	gw := &fakeGateway{batches: []kia.PollQuotesResult{
		{Quotes: []kia.MarketQuote{{Symbol: "005930", Price: decimal.RequireFromString("70000"), AsOf: mkTime(9, 3, 0)}}},
	}}
	loop := NewQuoteMonitoringLoop(svc, gw, QuoteMonitoringConfig{Mode: kia.ModeMock})

	result := loop.RunCycle()
	assert.Equal(t, LoopRunning, result.State)
	assert.Equal(t, 1, result.QuoteCount)
	assert.Equal(t, SymbolTracking, svc.ctx.Symbols["005930"].State)
}

func TestQuoteMonitoringLoop_DegradesAfterConsecutiveFailures(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	gw := &fakeGateway{errs: []error{assertErr, assertErr, assertErr}}
	loop := NewQuoteMonitoringLoop(svc, gw, QuoteMonitoringConfig{Mode: kia.ModeMock, ConsecutiveErrorThreshold: 3})

	var last QuoteCycleResult
	for i := 0; i < 3; i++ {
		last = loop.RunCycle()
	}
	assert.Equal(t, LoopDegraded, last.State)
	assert.True(t, svc.BuyEntryBlockedByDegraded())
}

func TestQuoteMonitoringLoop_RecoversAfterConsecutiveSuccesses(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	gw := &fakeGateway{errs: []error{assertErr, assertErr, assertErr}}
	loop := NewQuoteMonitoringLoop(svc, gw, QuoteMonitoringConfig{Mode: kia.ModeMock, ConsecutiveErrorThreshold: 3, RecoverySuccessThreshold: 2})
	for i := 0; i < 3; i++ {
		loop.RunCycle()
	}
	require.Equal(t, LoopDegraded, loop.State())

	gw.errs = nil
	gw.batches = []kia.PollQuotesResult{{}, {}}
	gw.calls = 3
	loop.RunCycle()
	result := loop.RunCycle()
	assert.Equal(t, LoopRunning, result.State)
	assert.False(t, svc.BuyEntryBlockedByDegraded())
}

func TestQuoteMonitoringLoop_RunForever_StopsOnSignal(t *testing.T) {
	svc, err := NewService("2026-07-31", []string{"005930"})
	require.NoError(t, err)

	gw := &fakeGateway{}
	loop := NewQuoteMonitoringLoop(svc, gw, QuoteMonitoringConfig{Mode: kia.ModeMock, PollIntervalMs: 1})
	stop := make(chan struct{})
	close(stop)

	cycles := loop.RunForever(stop, 0)
	assert.Len(t, cycles, 0)
	assert.Equal(t, LoopStopped, loop.State())
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "fetch failed" }
