package kia

import "time"

// MockAPIClient answers every call with static, deterministic payloads —
// used when the engine runs in mock mode or when live credentials are
// absent.
type MockAPIClient struct{}

// NewMockAPIClient returns a ready-to-use mock client.
func NewMockAPIClient() *MockAPIClient { return &MockAPIClient{} }

func (c *MockAPIClient) Call(opts CallOptions) (RawPayload, error) {
	switch opts.ServiceType {
	case ServiceAuth:
		return c.AuthRaw(opts.Mode)
	case ServiceQuote:
		symbol := "UNKNOWN"
		if opts.Payload != nil {
			if v, ok := opts.Payload["stk_cd"].(string); ok && v != "" {
				symbol = v
			}
		}
		apiID := opts.APIID
		if apiID == "" {
			apiID = "ka10007"
		}
		return c.FetchQuoteRaw(opts.Mode, symbol, apiID)
	case ServiceChart:
		symbol := "UNKNOWN"
		if opts.Payload != nil {
			if v, ok := opts.Payload["stk_cd"].(string); ok && v != "" {
				symbol = v
			}
		}
		return RawPayload{
			"stk_cd": symbol,
			"stk_min_pole_chart_qry": []any{
				map[string]any{"cur_prc": "70000", "cntr_tm": "20260731090300"},
			},
			"return_code": 0,
			"return_msg":  "정상적으로 처리되었습니다",
		}, nil
	case ServiceOrder:
		clientOrderID := opts.IdempotencyKey
		if clientOrderID == "" {
			clientOrderID = "mock-order"
		}
		apiID := opts.APIID
		if apiID == "" {
			apiID = "kt10000"
		}
		return c.SubmitOrderRaw(opts.Mode, opts.Payload, clientOrderID, apiID)
	case ServiceExecution:
		accountNo, brokerOrderID := "MOCK-ACCOUNT", "mock-order"
		if opts.Query != nil {
			if v, ok := opts.Query["accountNo"]; ok {
				accountNo = v
			}
			if v, ok := opts.Query["brokerOrderId"]; ok {
				brokerOrderID = v
			}
		}
		return c.FetchExecutionRaw(opts.Mode, accountNo, brokerOrderID)
	default:
		return nil, MapHTTPStatus(500, RawPayload{"service_type": string(opts.ServiceType)})
	}
}

func (c *MockAPIClient) AuthRaw(mode Mode) (RawPayload, error) {
	return RawPayload{"access_token": "mock-token", "expires_in": 3600}, nil
}

func (c *MockAPIClient) FetchQuoteRaw(mode Mode, symbol, apiID string) (RawPayload, error) {
	return RawPayload{
		"symbol":      symbol,
		"cur_prc":     "70000",
		"sel_fpr_bid": "70000",
		"buy_fpr_bid": "69900",
		"price":       "70000",
		"tick_size":   1,
		"as_of":       time.Now().UTC().Format(time.RFC3339),
		"return_code": 0,
		"return_msg":  "정상적으로 처리되었습니다",
	}, nil
}

func (c *MockAPIClient) FetchQuotesBatchRaw(mode Mode, symbols []string, timeoutMs int, pollCycleID string) (RawPayload, error) {
	quotes := make([]any, 0, len(symbols))
	for _, s := range symbols {
		q, _ := c.FetchQuoteRaw(mode, s, "ka10007")
		quotes = append(quotes, map[string]any(q))
	}
	return RawPayload{
		"poll_cycle_id": pollCycleID,
		"timeout_ms":    timeoutMs,
		"quotes":        quotes,
	}, nil
}

func (c *MockAPIClient) SubmitOrderRaw(mode Mode, payload RawPayload, clientOrderID, apiID string) (RawPayload, error) {
	return RawPayload{
		"broker_order_id": "mock-" + clientOrderID,
		"ord_no":          "mock-" + clientOrderID,
		"client_order_id": clientOrderID,
		"status":          "ACCEPTED",
		"accepted_at":     time.Now().UTC().Format(time.RFC3339),
		"return_code":     0,
		"return_msg":      "정상적으로 처리되었습니다",
		"echo":            map[string]any(payload),
	}, nil
}

func (c *MockAPIClient) FetchExecutionRaw(mode Mode, accountNo, brokerOrderID string) (RawPayload, error) {
	return RawPayload{
		"broker_order_id": brokerOrderID,
		"fills": []any{
			map[string]any{
				"execution_id": "exe-" + brokerOrderID,
				"price":        "70000",
				"quantity":     1,
				"executed_at":  time.Now().UTC().Format(time.RFC3339),
			},
		},
		"remaining_qty": 0,
		"account_no":    accountNo,
	}, nil
}

func (c *MockAPIClient) FetchPositionRaw(mode Mode, accountNo, symbol string) (RawPayload, error) {
	if symbol == "" {
		symbol = "005930"
	}
	return RawPayload{
		"positions": []any{
			map[string]any{
				"account_no":    accountNo,
				"symbol":        symbol,
				"quantity":      0,
				"avg_buy_price": "0",
			},
		},
	}, nil
}
