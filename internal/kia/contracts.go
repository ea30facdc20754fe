// Package kia implements the broker API client (C3) and gateway (C4):
// mode-routed transport to the Korean broker REST API, tolerant payload
// decoding, retry/backoff, idempotency, and token caching.
package kia

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects which broker environment a call targets.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeLive Mode = "live"
)

// ServiceType names one of the broker's logical service groups, used to
// resolve routing and auth scope.
type ServiceType string

const (
	ServiceAuth      ServiceType = "auth"
	ServiceQuote     ServiceType = "quote"
	ServiceChart     ServiceType = "chart"
	ServiceOrder     ServiceType = "order"
	ServiceExecution ServiceType = "execution"
)

// FetchQuoteRequest asks for a single symbol's current quote.
type FetchQuoteRequest struct {
	Mode   Mode
	Symbol string
}

// MarketQuote is the normalized quote returned by the gateway.
type MarketQuote struct {
	Symbol     string
	Price      decimal.Decimal
	TickSize   int
	AsOf       time.Time
	SymbolName string
}

// SubmitOrderRequest asks the broker to place a new order.
type SubmitOrderRequest struct {
	Mode          Mode
	AccountNo     string
	Symbol        string
	Side          string // BUY, SELL
	OrderType     string // LIMIT, MARKET
	Price         *decimal.Decimal
	Quantity      int
	ClientOrderID string
}

// OrderResult is the broker's synchronous response to order submission.
type OrderResult struct {
	BrokerOrderID string
	ClientOrderID string
	Status        string // ACCEPTED, REJECTED, PENDING
	AcceptedAt    *time.Time
}

// FetchExecutionRequest asks for the fills recorded so far for an order.
type FetchExecutionRequest struct {
	Mode          Mode
	AccountNo     string
	BrokerOrderID string
}

// ExecutionFill is a single broker fill event.
type ExecutionFill struct {
	ExecutionID string
	Price       decimal.Decimal
	Quantity    int
	ExecutedAt  time.Time
}

// ExecutionResult aggregates the fills known for one order.
type ExecutionResult struct {
	BrokerOrderID string
	Fills         []ExecutionFill
	RemainingQty  int
}

// FetchPositionRequest asks for the broker-side position records.
type FetchPositionRequest struct {
	Mode      Mode
	AccountNo string
	Symbol    string // optional
}

// PositionSnapshot is one broker-reported open position.
type PositionSnapshot struct {
	AccountNo   string
	Symbol      string
	Quantity    int
	AvgBuyPrice decimal.Decimal
}

// PollQuotesRequest asks for a batch of symbols in one monitoring cycle.
type PollQuotesRequest struct {
	Mode        Mode
	Symbols     []string
	PollCycleID string
	TimeoutMs   int
}

// PollQuoteError records a per-symbol failure within a batch poll.
type PollQuoteError struct {
	Symbol    string
	Code      string
	Retryable bool
}

// PollQuotesResult is the outcome of a batch quote poll, possibly partial.
type PollQuotesResult struct {
	PollCycleID string
	Quotes      []MarketQuote
	Errors      []PollQuoteError
	Partial     bool
}

// RawPayload is the loosely-typed JSON body exchanged with the broker.
type RawPayload map[string]any

// APIClient is the transport-level contract: one raw call per logical
// service, independent of how the response is decoded into domain types.
type APIClient interface {
	Call(opts CallOptions) (RawPayload, error)
	AuthRaw(mode Mode) (RawPayload, error)
	FetchQuoteRaw(mode Mode, symbol, apiID string) (RawPayload, error)
	FetchQuotesBatchRaw(mode Mode, symbols []string, timeoutMs int, pollCycleID string) (RawPayload, error)
	SubmitOrderRaw(mode Mode, payload RawPayload, clientOrderID, apiID string) (RawPayload, error)
	FetchExecutionRaw(mode Mode, accountNo, brokerOrderID string) (RawPayload, error)
	FetchPositionRaw(mode Mode, accountNo, symbol string) (RawPayload, error)
}

// CallOptions parametrizes a single logical broker call.
type CallOptions struct {
	ServiceType          ServiceType
	Mode                 Mode
	Payload              RawPayload
	APIID                string
	ContYN               string
	NextKey              string
	IdempotencyKey       string
	Query                map[string]string
	RetryAttemptsOverride int // 0 means "use client default"
}

// Gateway is the domain-typed contract above APIClient.
type Gateway interface {
	FetchQuote(req FetchQuoteRequest) (MarketQuote, error)
	FetchReferencePrice0903(mode Mode, symbol string) (*decimal.Decimal, error)
	FetchQuotesBatch(req PollQuotesRequest) (PollQuotesResult, error)
	SubmitOrder(req SubmitOrderRequest) (OrderResult, error)
	FetchExecution(req FetchExecutionRequest) (ExecutionResult, error)
	FetchPosition(req FetchPositionRequest) ([]PositionSnapshot, error)
}
