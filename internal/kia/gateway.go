package kia

import (
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/shopspring/decimal"

	"kiatrader/internal/logging"
)

var (
	referenceMinuteStart = 9*3600 + 3*60 + 0
	referenceMinuteEnd   = 9*3600 + 3*60 + 59
	kst                  = time.FixedZone("KST", 9*60*60)
)

func parseDT(value any) time.Time {
	if t, ok := value.(time.Time); ok {
		return t
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		if t, err := iso8601.ParseString(s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func resolveSymbol(value any, fallback string) string {
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fallback)
}

func resolveSymbolName(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstStringField(m RawPayload, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return v
			}
			if v != nil {
				return v
			}
		}
	}
	return nil
}

func toPlainString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// parseNonNegativePrice absolute-normalizes a signed/unsigned price string
// into a non-negative decimal (broker feeds sometimes send drops as
// negative numbers in the raw text field).
func parseNonNegativePrice(v any) decimal.Decimal {
	text := strings.TrimSpace(toPlainString(v))
	if text == "" {
		return decimal.Zero
	}
	text = strings.ReplaceAll(text, ",", "")
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

func isNegativeSignedPriceText(v any) bool {
	text := strings.TrimSpace(toPlainString(v))
	return text != "" && strings.HasPrefix(text, "-")
}

func parseHHMMSS(v any) (int, bool) {
	text := strings.TrimSpace(toPlainString(v))
	if text == "" {
		return 0, false
	}
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) < 6 {
		return 0, false
	}
	s = s[len(s)-6:]
	hour, err1 := strconv.Atoi(s[0:2])
	minute, err2 := strconv.Atoi(s[2:4])
	second, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return hour*3600 + minute*60 + second, true
}

func isReferenceMinute(secondsOfDay int) bool {
	return secondsOfDay >= referenceMinuteStart && secondsOfDay <= referenceMinuteEnd
}

func intFromAny(v any, fallback int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}

// DefaultGateway translates between the broker's loosely-typed JSON
// payloads and this system's domain types.
type DefaultGateway struct {
	client APIClient
}

// NewDefaultGateway wraps client with tolerant decoding.
func NewDefaultGateway(client APIClient) *DefaultGateway {
	return &DefaultGateway{client: client}
}

func (g *DefaultGateway) FetchQuote(req FetchQuoteRequest) (MarketQuote, error) {
	raw, err := g.client.FetchQuoteRaw(req.Mode, req.Symbol, "ka10007")
	if err != nil {
		return MarketQuote{}, err
	}
	priceValue := firstStringField(raw, "cur_prc", "price")
	price := parseNonNegativePrice(priceValue)
	if isNegativeSignedPriceText(raw["cur_prc"]) || isNegativeSignedPriceText(raw["price"]) {
		logging.Warnf("kia: signed quote price detected symbol=%s raw_cur_prc=%v raw_price=%v normalized=%s mode=%s",
			req.Symbol, raw["cur_prc"], raw["price"], price.String(), req.Mode)
	}

	symbol := req.Symbol
	if v, ok := raw["symbol"]; ok {
		symbol = toPlainString(v)
	}
	nameValue := firstStringField(raw, "symbol_name", "name", "stk_nm", "hts_kor_isnm", "prdt_abrv_name", "isu_nm")

	return MarketQuote{
		Symbol:     symbol,
		Price:      price,
		TickSize:   intFromAny(raw["tick_size"], 1),
		AsOf:       parseDT(raw["as_of"]),
		SymbolName: resolveSymbolName(nameValue),
	}, nil
}

// FetchReferencePrice0903 backfills a symbol's 09:03 reference price from
// the minute chart, returning nil (not an error) when no matching row exists.
func (g *DefaultGateway) FetchReferencePrice0903(mode Mode, symbol string) (*decimal.Decimal, error) {
	baseDt := time.Now().In(kst).Format("20060102")
	raw, err := g.client.Call(CallOptions{
		ServiceType: ServiceChart,
		Mode:        mode,
		Payload: RawPayload{
			"stk_cd":        symbol,
			"tic_scope":     "1",
			"upd_stkpc_tp":  "1",
			"base_dt":       baseDt,
		},
		APIID: "ka10080",
	})
	if err != nil {
		return nil, err
	}
	rowsRaw, ok := raw["stk_min_pole_chart_qry"].([]any)
	if !ok {
		return nil, nil
	}

	var bestSeconds int = -1
	var bestPrice *decimal.Decimal
	for _, rowAny := range rowsRaw {
		row, ok := rowAny.(map[string]any)
		if !ok {
			continue
		}
		seconds, ok := parseHHMMSS(row["cntr_tm"])
		if !ok || !isReferenceMinute(seconds) {
			continue
		}
		priceValue := firstStringField(RawPayload(row), "cur_prc", "price")
		price := parseNonNegativePrice(priceValue)
		if price.Sign() <= 0 {
			continue
		}
		if bestSeconds == -1 || seconds > bestSeconds {
			bestSeconds = seconds
			p := price
			bestPrice = &p
		}
	}
	return bestPrice, nil
}

func (g *DefaultGateway) FetchQuotesBatch(req PollQuotesRequest) (PollQuotesResult, error) {
	if len(req.Symbols) < 1 || len(req.Symbols) > 20 {
		return PollQuotesResult{}, NewError("KIA_INVALID_REQUEST", "symbols는 1개 이상 20개 이하여야 합니다.", false, nil)
	}
	if strings.TrimSpace(req.PollCycleID) == "" {
		return PollQuotesResult{}, NewError("KIA_INVALID_REQUEST", "poll_cycle_id는 빈 문자열일 수 없습니다.", false, nil)
	}

	raw, err := g.client.FetchQuotesBatchRaw(req.Mode, req.Symbols, req.TimeoutMs, req.PollCycleID)
	if err != nil {
		return PollQuotesResult{}, err
	}

	var quotes []MarketQuote
	if items, ok := raw["quotes"].([]any); ok {
		for index, itemAny := range items {
			item, ok := itemAny.(map[string]any)
			if !ok {
				continue
			}
			requestedSymbol := ""
			if index < len(req.Symbols) {
				requestedSymbol = req.Symbols[index]
			}
			symbolValue := firstStringField(RawPayload(item), "symbol", "stk_cd", "code", "pdno")
			resolvedSymbol := resolveSymbol(symbolValue, requestedSymbol)

			priceValue := firstStringField(RawPayload(item), "cur_prc", "price")
			price := parseNonNegativePrice(priceValue)
			if isNegativeSignedPriceText(item["cur_prc"]) || isNegativeSignedPriceText(item["price"]) {
				logging.Warnf("kia: signed batch quote price detected cycle_id=%s symbol=%s raw_cur_prc=%v raw_price=%v normalized=%s mode=%s",
					req.PollCycleID, resolvedSymbol, item["cur_prc"], item["price"], price.String(), req.Mode)
			}

			nameValue := firstStringField(RawPayload(item), "symbol_name", "name", "stk_nm", "hts_kor_isnm", "prdt_abrv_name", "isu_nm")

			quotes = append(quotes, MarketQuote{
				Symbol:     resolvedSymbol,
				Price:      price,
				TickSize:   intFromAny(item["tick_size"], 1),
				AsOf:       parseDT(item["as_of"]),
				SymbolName: resolveSymbolName(nameValue),
			})
		}
	}

	var errs []PollQuoteError
	if items, ok := raw["errors"].([]any); ok {
		for _, itemAny := range items {
			item, ok := itemAny.(map[string]any)
			if !ok {
				continue
			}
			code := "KIA_UNKNOWN"
			if v, ok := item["code"].(string); ok {
				code = v
			}
			retryable, _ := item["retryable"].(bool)
			symbol, _ := item["symbol"].(string)
			errs = append(errs, PollQuoteError{Symbol: symbol, Code: code, Retryable: retryable})
		}
	}

	pollCycleID := req.PollCycleID
	if v, ok := raw["poll_cycle_id"].(string); ok && v != "" {
		pollCycleID = v
	}
	partial := len(errs) > 0
	if v, ok := raw["partial"].(bool); ok {
		partial = v
	}

	return PollQuotesResult{PollCycleID: pollCycleID, Quotes: quotes, Errors: errs, Partial: partial}, nil
}

func (g *DefaultGateway) SubmitOrder(req SubmitOrderRequest) (OrderResult, error) {
	trdeTp := "0"
	if req.OrderType == "MARKET" {
		trdeTp = "3"
	}
	apiID := "kt10001"
	if req.Side == "BUY" {
		apiID = "kt10000"
	}
	ordUv := ""
	if req.Price != nil {
		ordUv = req.Price.String()
	}
	payload := RawPayload{
		"dmst_stex_tp": "KRX",
		"stk_cd":       req.Symbol,
		"ord_qty":      strconv.Itoa(req.Quantity),
		"ord_uv":       ordUv,
		"trde_tp":      trdeTp,
		"cond_uv":      "",
	}
	raw, err := g.client.SubmitOrderRaw(req.Mode, payload, req.ClientOrderID, apiID)
	if err != nil {
		return OrderResult{}, err
	}

	brokerOrderID := toPlainString(firstStringField(raw, "ord_no", "broker_order_id"))
	clientOrderID := req.ClientOrderID
	if v, ok := raw["client_order_id"].(string); ok && v != "" {
		clientOrderID = v
	}
	status := "PENDING"
	if v, ok := raw["status"].(string); ok && v != "" {
		status = v
	}
	var acceptedAt *time.Time
	if v, ok := raw["accepted_at"]; ok && v != nil {
		t := parseDT(v)
		acceptedAt = &t
	}

	return OrderResult{
		BrokerOrderID: brokerOrderID,
		ClientOrderID: clientOrderID,
		Status:        status,
		AcceptedAt:    acceptedAt,
	}, nil
}

func (g *DefaultGateway) FetchExecution(req FetchExecutionRequest) (ExecutionResult, error) {
	raw, err := g.client.FetchExecutionRaw(req.Mode, req.AccountNo, req.BrokerOrderID)
	if err != nil {
		return ExecutionResult{}, err
	}
	var fills []ExecutionFill
	if items, ok := raw["fills"].([]any); ok {
		for _, itemAny := range items {
			item, ok := itemAny.(map[string]any)
			if !ok {
				continue
			}
			execID, _ := item["execution_id"].(string)
			price := parseNonNegativePrice(item["price"])
			fills = append(fills, ExecutionFill{
				ExecutionID: execID,
				Price:       price,
				Quantity:    intFromAny(item["quantity"], 0),
				ExecutedAt:  parseDT(item["executed_at"]),
			})
		}
	}
	brokerOrderID := req.BrokerOrderID
	if v, ok := raw["broker_order_id"].(string); ok && v != "" {
		brokerOrderID = v
	}
	return ExecutionResult{
		BrokerOrderID: brokerOrderID,
		Fills:         fills,
		RemainingQty:  intFromAny(raw["remaining_qty"], 0),
	}, nil
}

func (g *DefaultGateway) FetchPosition(req FetchPositionRequest) ([]PositionSnapshot, error) {
	raw, err := g.client.FetchPositionRaw(req.Mode, req.AccountNo, req.Symbol)
	if err != nil {
		return nil, err
	}
	items, ok := raw["positions"].([]any)
	if !ok {
		return nil, nil
	}
	var result []PositionSnapshot
	for _, itemAny := range items {
		item, ok := itemAny.(map[string]any)
		if !ok {
			continue
		}
		accountNo, _ := item["account_no"].(string)
		if accountNo == "" {
			accountNo = req.AccountNo
		}
		symbol, _ := item["symbol"].(string)
		avgBuyPrice := parseNonNegativePrice(item["avg_buy_price"])
		result = append(result, PositionSnapshot{
			AccountNo:   accountNo,
			Symbol:      symbol,
			Quantity:    intFromAny(item["quantity"], 0),
			AvgBuyPrice: avgBuyPrice,
		})
	}
	return result, nil
}
