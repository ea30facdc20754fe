package kia

import (
	"strings"
	"sync"
	"time"
)

// RoutingAPIClient resolves which mode (and therefore which underlying
// client) to use for each call, reading the configured mode from CSM
// settings when the caller doesn't pin one, and invalidating any cached
// token when the effective mode changes between calls.
type RoutingAPIClient struct {
	resolver *EndpointResolver
	tokens   *TokenProvider
	mock     *MockAPIClient
	live     *LiveAPIClient

	mu       sync.Mutex
	lastMode Mode
}

// NewRoutingAPIClient wires mock+live clients behind mode resolution.
func NewRoutingAPIClient(resolver *EndpointResolver, transport Transport, cfg LiveClientConfig) *RoutingAPIClient {
	r := &RoutingAPIClient{
		resolver: resolver,
		mock:     NewMockAPIClient(),
	}
	r.tokens = NewTokenProvider(r.issueLiveToken)
	r.live = NewLiveAPIClient(resolver, r.tokens, transport, cfg)
	return r
}

func (r *RoutingAPIClient) Call(opts CallOptions) (RawPayload, error) {
	mode := r.resolveMode(opts.Mode)
	opts.Mode = mode
	return r.selectClient(mode).Call(opts)
}

func (r *RoutingAPIClient) AuthRaw(mode Mode) (RawPayload, error) {
	return r.Call(CallOptions{ServiceType: ServiceAuth, Mode: mode})
}

func (r *RoutingAPIClient) FetchQuoteRaw(mode Mode, symbol, apiID string) (RawPayload, error) {
	if apiID == "" {
		apiID = "ka10007"
	}
	return r.Call(CallOptions{ServiceType: ServiceQuote, Mode: mode, Payload: RawPayload{"stk_cd": symbol}, APIID: apiID})
}

func (r *RoutingAPIClient) FetchQuotesBatchRaw(mode Mode, symbols []string, timeoutMs int, pollCycleID string) (RawPayload, error) {
	resolved := r.resolveMode(mode)
	return r.selectClient(resolved).FetchQuotesBatchRaw(resolved, symbols, timeoutMs, pollCycleID)
}

func (r *RoutingAPIClient) SubmitOrderRaw(mode Mode, payload RawPayload, clientOrderID, apiID string) (RawPayload, error) {
	return r.Call(CallOptions{ServiceType: ServiceOrder, Mode: mode, Payload: payload, IdempotencyKey: clientOrderID, APIID: apiID})
}

func (r *RoutingAPIClient) FetchExecutionRaw(mode Mode, accountNo, brokerOrderID string) (RawPayload, error) {
	return r.Call(CallOptions{ServiceType: ServiceExecution, Mode: mode, Query: map[string]string{"accountNo": accountNo, "brokerOrderId": brokerOrderID}})
}

func (r *RoutingAPIClient) FetchPositionRaw(mode Mode, accountNo, symbol string) (RawPayload, error) {
	resolved := r.resolveMode(mode)
	return r.selectClient(resolved).FetchPositionRaw(resolved, accountNo, symbol)
}

func (r *RoutingAPIClient) resolveMode(mode Mode) Mode {
	var selected Mode
	if mode == ModeMock || mode == ModeLive {
		selected = mode
	} else {
		selected = r.resolver.ReadCsmMode()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastMode != "" && r.lastMode != selected {
		r.tokens.Invalidate(r.lastMode)
	}
	r.lastMode = selected
	return selected
}

func (r *RoutingAPIClient) selectClient(mode Mode) APIClient {
	if mode == ModeMock {
		return r.mock
	}
	if !r.resolver.HasLiveCredentials() {
		return r.mock
	}
	return r.live
}

func (r *RoutingAPIClient) issueLiveToken(mode Mode) (AccessToken, error) {
	authPayload := r.resolver.ReadAuthPayload()
	endpoint, err := r.resolver.Resolve(mode, ServiceAuth)
	if err != nil {
		return AccessToken{}, err
	}
	payload := RawPayload{"grant_type": "client_credentials"}
	for k, v := range authPayload {
		payload[k] = v
	}
	status, response, err := r.live.transport(endpoint.Method, endpoint.BaseURL+endpoint.Path,
		map[string]string{"Content-Type": "application/json;charset=UTF-8"}, payload, nil, 5*time.Second)
	if err != nil {
		return AccessToken{}, MapException(err)
	}
	if status < 200 || status >= 300 {
		return AccessToken{}, MapHTTPStatus(status, response)
	}

	token := ""
	if v, ok := response["token"].(string); ok {
		token = strings.TrimSpace(v)
	} else if v, ok := response["access_token"].(string); ok {
		token = strings.TrimSpace(v)
	}
	expiresIn := 3600
	if v, ok := response["expires_in"].(float64); ok {
		expiresIn = int(v)
	}
	now := time.Now().UTC()
	refreshSeconds := expiresIn - 60
	if refreshSeconds < 0 {
		refreshSeconds = 0
	}
	if token == "" {
		token = "live-token"
	}
	return AccessToken{
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(expiresIn) * time.Second),
		RefreshAt: now.Add(time.Duration(refreshSeconds) * time.Second),
		Mode:      mode,
	}, nil
}
