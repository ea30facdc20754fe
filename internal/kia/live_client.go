package kia

import (
	"fmt"
	"sync"
	"time"
)

// LiveClientConfig tunes a LiveAPIClient.
type LiveClientConfig struct {
	TimeoutSeconds        float64
	RetryAttempts         int
	RetryBaseDelaySeconds float64
	RetryMaxDelaySeconds  float64
	QuoteMinIntervalSeconds float64
	MonotonicFn           func() time.Time
}

func defaultLiveClientConfig() LiveClientConfig {
	return LiveClientConfig{
		TimeoutSeconds:          5.0,
		RetryAttempts:           3,
		RetryBaseDelaySeconds:   0.2,
		RetryMaxDelaySeconds:    2.0,
		QuoteMinIntervalSeconds: 0.25,
		MonotonicFn:             time.Now,
	}
}

// LiveAPIClient performs real HTTP calls against the broker, with
// token-refresh-on-401, retry-with-jitter, idempotent order resubmission
// recovery, and a process-wide minimum interval between quote calls.
type LiveAPIClient struct {
	resolver   *EndpointResolver
	tokens     *TokenProvider
	transport  Transport
	cfg        LiveClientConfig
	retry      RetryPolicy
	idempotent *IdempotencyStore

	quoteMu         sync.Mutex
	lastQuoteSentAt *time.Time
}

// NewLiveAPIClient builds a live client. cfg zero value falls back to
// defaultLiveClientConfig().
func NewLiveAPIClient(resolver *EndpointResolver, tokens *TokenProvider, transport Transport, cfg LiveClientConfig) *LiveAPIClient {
	defaults := defaultLiveClientConfig()
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = defaults.RetryAttempts
	}
	if cfg.RetryBaseDelaySeconds == 0 {
		cfg.RetryBaseDelaySeconds = defaults.RetryBaseDelaySeconds
	}
	if cfg.RetryMaxDelaySeconds == 0 {
		cfg.RetryMaxDelaySeconds = defaults.RetryMaxDelaySeconds
	}
	if cfg.QuoteMinIntervalSeconds == 0 {
		cfg.QuoteMinIntervalSeconds = defaults.QuoteMinIntervalSeconds
	}
	if cfg.MonotonicFn == nil {
		cfg.MonotonicFn = defaults.MonotonicFn
	}
	return &LiveAPIClient{
		resolver:   resolver,
		tokens:     tokens,
		transport:  transport,
		cfg:        cfg,
		retry:      RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: time.Duration(cfg.RetryBaseDelaySeconds * float64(time.Second)), MaxDelay: time.Duration(cfg.RetryMaxDelaySeconds * float64(time.Second)), SleepFn: time.Sleep},
		idempotent: NewIdempotencyStore(),
	}
}

func (c *LiveAPIClient) Call(opts CallOptions) (RawPayload, error) {
	resolvedMode := opts.Mode
	if resolvedMode == "" {
		resolvedMode = ModeMock
	}
	opts.Mode = resolvedMode

	if opts.ServiceType == ServiceAuth {
		return c.send(opts, "")
	}

	attempts := c.retry.Attempts
	if opts.RetryAttemptsOverride > 0 {
		attempts = opts.RetryAttemptsOverride
	}
	policy := c.retry
	policy.Attempts = attempts

	hasForcedRefresh := false

	operation := func() (RawPayload, error) {
		token, err := c.tokens.GetValidToken(resolvedMode)
		if err != nil {
			return nil, err
		}
		response, err := c.send(opts, token.Token)
		if err == nil {
			if opts.ServiceType == ServiceOrder && opts.IdempotencyKey != "" {
				c.idempotent.Save(resolvedMode, opts.IdempotencyKey, response)
			}
			return response, nil
		}
		kerr, ok := AsKiaError(err)
		if !ok {
			return nil, err
		}
		if kerr.Code == "KIA_AUTH_TOKEN_EXPIRED" && !hasForcedRefresh {
			hasForcedRefresh = true
			c.tokens.Invalidate(resolvedMode)
			refreshed, rerr := c.tokens.ForceRefresh(resolvedMode)
			if rerr != nil {
				return nil, rerr
			}
			return c.send(opts, refreshed.Token)
		}
		if opts.ServiceType == ServiceOrder && kerr.Code == "KIA_API_TIMEOUT" {
			if existing, found := c.idempotent.Find(resolvedMode, opts.IdempotencyKey); found {
				return existing, nil
			}
		}
		return nil, err
	}

	shouldRetry := func(err error, attempt int) bool {
		kerr, ok := AsKiaError(err)
		if !ok || !kerr.Retryable {
			return false
		}
		if kerr.Code == "KIA_AUTH_TOKEN_EXPIRED" {
			return false
		}
		if opts.ServiceType == ServiceOrder && kerr.Code == "KIA_API_TIMEOUT" {
			return false
		}
		return true
	}

	return ExecuteWithRetry(policy, operation, shouldRetry)
}

func (c *LiveAPIClient) AuthRaw(mode Mode) (RawPayload, error) {
	return c.Call(CallOptions{ServiceType: ServiceAuth, Mode: mode})
}

func (c *LiveAPIClient) FetchQuoteRaw(mode Mode, symbol, apiID string) (RawPayload, error) {
	return c.Call(CallOptions{ServiceType: ServiceQuote, Mode: mode, Payload: RawPayload{"stk_cd": symbol}, APIID: apiID})
}

func (c *LiveAPIClient) FetchQuotesBatchRaw(mode Mode, symbols []string, timeoutMs int, pollCycleID string) (RawPayload, error) {
	resolvedMode := mode
	if resolvedMode == "" {
		resolvedMode = ModeMock
	}
	var quotes []any
	var errs []any
	for _, symbol := range symbols {
		quote, err := c.Call(CallOptions{ServiceType: ServiceQuote, Mode: resolvedMode, Payload: RawPayload{"stk_cd": symbol}, APIID: "ka10007", RetryAttemptsOverride: 1})
		if err == nil {
			quotes = append(quotes, map[string]any(quote))
			continue
		}
		kerr, ok := AsKiaError(err)
		if ok && (kerr.Code == "KIA_API_TIMEOUT" || kerr.Code == "KIA_RATE_LIMITED") {
			quote2, err2 := c.Call(CallOptions{ServiceType: ServiceQuote, Mode: resolvedMode, Payload: RawPayload{"stk_cd": symbol}, APIID: "ka10007", RetryAttemptsOverride: 1})
			if err2 == nil {
				quotes = append(quotes, map[string]any(quote2))
				continue
			}
			kerr2, _ := AsKiaError(err2)
			errs = append(errs, map[string]any{"symbol": symbol, "code": kerr2.Code, "retryable": kerr2.Retryable})
			continue
		}
		code, retryable := "KIA_UNKNOWN", false
		if ok {
			code, retryable = kerr.Code, kerr.Retryable
		}
		errs = append(errs, map[string]any{"symbol": symbol, "code": code, "retryable": retryable})
	}
	return RawPayload{
		"poll_cycle_id": pollCycleID,
		"timeout_ms":    timeoutMs,
		"quotes":        quotes,
		"errors":        errs,
		"partial":       len(errs) > 0,
	}, nil
}

func (c *LiveAPIClient) SubmitOrderRaw(mode Mode, payload RawPayload, clientOrderID, apiID string) (RawPayload, error) {
	return c.Call(CallOptions{ServiceType: ServiceOrder, Mode: mode, Payload: payload, IdempotencyKey: clientOrderID, APIID: apiID})
}

func (c *LiveAPIClient) FetchExecutionRaw(mode Mode, accountNo, brokerOrderID string) (RawPayload, error) {
	return c.Call(CallOptions{ServiceType: ServiceExecution, Mode: mode, Query: map[string]string{"accountNo": accountNo, "brokerOrderId": brokerOrderID}})
}

func (c *LiveAPIClient) FetchPositionRaw(mode Mode, accountNo, symbol string) (RawPayload, error) {
	query := map[string]string{"accountNo": accountNo}
	if symbol != "" {
		query["symbol"] = symbol
	}
	return c.Call(CallOptions{ServiceType: ServiceExecution, Mode: mode, Query: query})
}

func (c *LiveAPIClient) send(opts CallOptions, token string) (RawPayload, error) {
	if opts.ServiceType == ServiceQuote {
		c.enforceQuoteRateLimit()
	}

	endpoint, err := c.resolver.Resolve(opts.Mode, opts.ServiceType)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Content-Type": "application/json;charset=UTF-8",
		"cont-yn":      opts.ContYN,
		"next-key":     opts.NextKey,
	}
	if token != "" {
		headers["authorization"] = "Bearer " + token
	}
	if opts.APIID != "" {
		headers["api-id"] = opts.APIID
	}
	if opts.IdempotencyKey != "" {
		headers["X-Idempotency-Key"] = opts.IdempotencyKey
	}

	if opts.ServiceType != ServiceQuote {
		c.quoteMu.Lock()
		defer c.quoteMu.Unlock()
	}

	status, response, err := c.transport(endpoint.Method, endpoint.BaseURL+endpoint.Path, headers, opts.Payload, opts.Query, time.Duration(c.cfg.TimeoutSeconds*float64(time.Second)))
	if err != nil {
		return nil, MapException(err)
	}
	if status < 200 || status >= 300 {
		return nil, MapHTTPStatus(status, response)
	}
	if response == nil {
		return nil, MapException(fmt.Errorf("response is not object"))
	}
	return response, nil
}

func (c *LiveAPIClient) enforceQuoteRateLimit() {
	c.quoteMu.Lock()
	defer c.quoteMu.Unlock()
	if c.cfg.QuoteMinIntervalSeconds <= 0 {
		return
	}
	now := c.cfg.MonotonicFn()
	if c.lastQuoteSentAt != nil {
		elapsed := now.Sub(*c.lastQuoteSentAt)
		remaining := time.Duration(c.cfg.QuoteMinIntervalSeconds*float64(time.Second)) - elapsed
		if remaining > 0 {
			time.Sleep(remaining)
			now = c.cfg.MonotonicFn()
		}
	}
	c.lastQuoteSentAt = &now
}
