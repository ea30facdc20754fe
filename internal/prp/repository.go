package prp

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Repository is the sqlite-backed event store for strategy/order/execution
// events, position snapshots and derived reporting tables.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and applies
// the schema.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prp: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers well
	r := &Repository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	statements := strings.Split(schemaSQL, ";\n")
	for _, stmt := range statements {
		s := strings.TrimSpace(stmt)
		if s == "" {
			continue
		}
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("prp: apply schema: %w", err)
		}
	}
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("prp: read schema_version: %w", err)
	}
	if count == 0 {
		if _, err := r.db.Exec(`INSERT INTO schema_version(version, applied_at) VALUES (?, ?)`,
			schemaVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("prp: record schema version: %w", err)
		}
	}
	return nil
}

func decimalPtrStr(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}

// AppendStrategyEvent inserts a new strategy event row.
func (r *Repository) AppendStrategyEvent(e StrategyEvent) error {
	var payloadJSON any
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("prp: marshal payload: %w", err)
		}
		payloadJSON = string(b)
	}
	_, err := r.db.Exec(`
		INSERT INTO strategy_events(
			event_id, trading_date, occurred_at, symbol, event_type,
			base_price, local_low, current_price, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.TradingDate, e.OccurredAt.Format(time.RFC3339Nano), e.Symbol, e.EventType,
		decimalPtrStr(e.BasePrice), decimalPtrStr(e.LocalLow), decimalPtrStr(e.CurrentPrice), payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("prp: append strategy event: %w", err)
	}
	return nil
}

// AppendOrderEvent inserts a new order-status transition row.
func (r *Repository) AppendOrderEvent(e OrderEvent) error {
	var reasonCode, reasonMsg any
	if e.ReasonCode != "" {
		reasonCode = e.ReasonCode
	}
	if e.ReasonMessage != "" {
		reasonMsg = e.ReasonMessage
	}
	_, err := r.db.Exec(`
		INSERT INTO order_events(
			event_id, order_id, trading_date, occurred_at, symbol, side,
			order_type, order_price, quantity, status, client_order_key,
			reason_code, reason_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.OrderID, e.TradingDate, e.OccurredAt.Format(time.RFC3339Nano), e.Symbol, e.Side,
		e.OrderType, e.OrderPrice.String(), e.Quantity, e.Status, e.ClientOrderKey,
		reasonCode, reasonMsg,
	)
	if err != nil {
		return fmt.Errorf("prp: append order event: %w", err)
	}
	return nil
}

// AppendExecutionEvent inserts a fill event. Returns false (no error) when
// the execution_id already exists — the caller's cue to skip reprocessing.
func (r *Repository) AppendExecutionEvent(e ExecutionEvent) (bool, error) {
	_, err := r.db.Exec(`
		INSERT INTO execution_events(
			event_id, execution_id, order_id, trading_date, occurred_at,
			symbol, side, execution_price, execution_qty, cum_qty, remaining_qty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.ExecutionID, e.OrderID, e.TradingDate, e.OccurredAt.Format(time.RFC3339Nano),
		e.Symbol, e.Side, e.ExecutionPrice.String(), e.ExecutionQty, e.CumQty, e.RemainingQty,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("prp: append execution event: %w", err)
	}
	return true, nil
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "constraint failed")
}

// ExistsExecution reports whether an execution_id has already been recorded.
func (r *Repository) ExistsExecution(executionID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM execution_events WHERE execution_id = ? LIMIT 1`, executionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("prp: exists execution: %w", err)
	}
	return true, nil
}

// SaveStateSnapshot persists a new position snapshot row.
func (r *Repository) SaveStateSnapshot(s PositionSnapshot) error {
	var lastOrderID any
	if s.LastOrderID != "" {
		lastOrderID = s.LastOrderID
	}
	locked := 0
	if s.MinProfitLocked {
		locked = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO position_snapshots(
			snapshot_id, saved_at, trading_date, symbol, avg_buy_price, quantity,
			current_profit_rate, max_profit_rate, min_profit_locked, last_order_id, state_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SnapshotID, s.SavedAt.Format(time.RFC3339Nano), s.TradingDate, s.Symbol,
		s.AvgBuyPrice.String(), s.Quantity, s.CurrentProfitRate.String(), s.MaxProfitRate.String(),
		locked, lastOrderID, s.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("prp: save state snapshot: %w", err)
	}
	return nil
}

// LoadLatestStateSnapshot returns the most recently saved snapshot for a
// trading date, or nil if none exists.
func (r *Repository) LoadLatestStateSnapshot(tradingDate string) (*PositionSnapshot, error) {
	row := r.db.QueryRow(`
		SELECT snapshot_id, saved_at, trading_date, symbol, avg_buy_price, quantity,
		       current_profit_rate, max_profit_rate, min_profit_locked, last_order_id, state_version
		FROM position_snapshots
		WHERE trading_date = ?
		ORDER BY saved_at DESC
		LIMIT 1`, tradingDate)

	var s PositionSnapshot
	var savedAt string
	var avgBuyPrice, curProfitRate, maxProfitRate string
	var locked int
	var lastOrderID sql.NullString
	err := row.Scan(&s.SnapshotID, &savedAt, &s.TradingDate, &s.Symbol, &avgBuyPrice, &s.Quantity,
		&curProfitRate, &maxProfitRate, &locked, &lastOrderID, &s.StateVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prp: load latest snapshot: %w", err)
	}
	s.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, fmt.Errorf("prp: parse saved_at: %w", err)
	}
	s.AvgBuyPrice, _ = decimal.NewFromString(avgBuyPrice)
	s.CurrentProfitRate, _ = decimal.NewFromString(curProfitRate)
	s.MaxProfitRate, _ = decimal.NewFromString(maxProfitRate)
	s.MinProfitLocked = locked != 0
	s.LastOrderID = lastOrderID.String
	return &s, nil
}

// ListStrategyEventsOptions filters ListStrategyEvents.
type ListStrategyEventsOptions struct {
	TradingDate string
	EventTypes  []string
	Limit       int
}

// ListStrategyEvents returns strategy events matching the filter, newest first.
func (r *Repository) ListStrategyEvents(opts ListStrategyEventsOptions) ([]StrategyEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var clauses []string
	var args []any
	if opts.TradingDate != "" {
		clauses = append(clauses, "trading_date = ?")
		args = append(args, opts.TradingDate)
	}
	if len(opts.EventTypes) > 0 {
		placeholders := make([]string, len(opts.EventTypes))
		for i, t := range opts.EventTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		clauses = append(clauses, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}

	whereSQL := ""
	if len(clauses) > 0 {
		whereSQL = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT event_id, occurred_at, trading_date, symbol, event_type,
		       base_price, local_low, current_price, payload_json
		FROM strategy_events
		%s
		ORDER BY occurred_at DESC, event_id DESC
		LIMIT ?`, whereSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("prp: list strategy events: %w", err)
	}
	defer rows.Close()

	var result []StrategyEvent
	for rows.Next() {
		var e StrategyEvent
		var occurredAt string
		var basePrice, localLow, currentPrice sql.NullString
		var payloadJSON sql.NullString
		if err := rows.Scan(&e.EventID, &occurredAt, &e.TradingDate, &e.Symbol, &e.EventType,
			&basePrice, &localLow, &currentPrice, &payloadJSON); err != nil {
			return nil, fmt.Errorf("prp: scan strategy event: %w", err)
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		if basePrice.Valid {
			d, _ := decimal.NewFromString(basePrice.String)
			e.BasePrice = &d
		}
		if localLow.Valid {
			d, _ := decimal.NewFromString(localLow.String)
			e.LocalLow = &d
		}
		if currentPrice.Valid {
			d, _ := decimal.NewFromString(currentPrice.String)
			e.CurrentPrice = &d
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			var payload map[string]any
			if json.Unmarshal([]byte(payloadJSON.String), &payload) == nil {
				e.Payload = payload
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *Repository) listExecutionsForDate(tradingDate string) ([]ExecutionEvent, error) {
	rows, err := r.db.Query(`
		SELECT event_id, execution_id, order_id, trading_date, occurred_at, symbol,
		       side, execution_price, execution_qty, cum_qty, remaining_qty
		FROM execution_events
		WHERE trading_date = ?
		ORDER BY occurred_at ASC, event_id ASC`, tradingDate)
	if err != nil {
		return nil, fmt.Errorf("prp: list executions: %w", err)
	}
	defer rows.Close()

	var result []ExecutionEvent
	for rows.Next() {
		var e ExecutionEvent
		var occurredAt, price string
		if err := rows.Scan(&e.EventID, &e.ExecutionID, &e.OrderID, &e.TradingDate, &occurredAt,
			&e.Symbol, &e.Side, &price, &e.ExecutionQty, &e.CumQty, &e.RemainingQty); err != nil {
			return nil, fmt.Errorf("prp: scan execution: %w", err)
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		e.ExecutionPrice, _ = decimal.NewFromString(price)
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.Before(result[j].OccurredAt)
		}
		return result[i].EventID < result[j].EventID
	})
	return result, rows.Err()
}

func (r *Repository) upsertTradeDetails(tradingDate string, details []TradeDetail) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("prp: begin upsert trade details: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trade_details WHERE trading_date = ?`, tradingDate); err != nil {
		return fmt.Errorf("prp: delete trade details: %w", err)
	}
	for _, d := range details {
		_, err := tx.Exec(`
			INSERT INTO trade_details(
				id, trading_date, symbol, buy_executed_at, sell_executed_at,
				quantity, buy_price, sell_price, buy_amount, sell_amount,
				sell_tax, sell_fee, net_pnl, return_rate
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.TradingDate, d.Symbol, d.BuyExecutedAt.Format(time.RFC3339Nano), d.SellExecutedAt.Format(time.RFC3339Nano),
			d.Quantity, d.BuyPrice.String(), d.SellPrice.String(), d.BuyAmount.String(), d.SellAmount.String(),
			d.SellTax.String(), d.SellFee.String(), d.NetPnl.String(), d.ReturnRate.String(),
		)
		if err != nil {
			return fmt.Errorf("prp: insert trade detail: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) upsertDailyReport(report DailyReport) error {
	anomaliesJSON := "[]"
	if len(report.Anomalies) > 0 {
		b, err := json.Marshal(report.Anomalies)
		if err == nil {
			anomaliesJSON = string(b)
		}
	}
	_, err := r.db.Exec(`
		INSERT INTO daily_reports(
			trading_date, total_buy_amount, total_sell_amount, total_sell_tax,
			total_sell_fee, total_net_pnl, total_return_rate, anomalies_json, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trading_date) DO UPDATE SET
			total_buy_amount=excluded.total_buy_amount,
			total_sell_amount=excluded.total_sell_amount,
			total_sell_tax=excluded.total_sell_tax,
			total_sell_fee=excluded.total_sell_fee,
			total_net_pnl=excluded.total_net_pnl,
			total_return_rate=excluded.total_return_rate,
			anomalies_json=excluded.anomalies_json,
			generated_at=excluded.generated_at`,
		report.TradingDate, report.TotalBuyAmount.String(), report.TotalSellAmount.String(), report.TotalSellTax.String(),
		report.TotalSellFee.String(), report.TotalNetPnl.String(), report.TotalReturnRate.String(), anomaliesJSON,
		report.GeneratedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("prp: upsert daily report: %w", err)
	}
	return nil
}

// GenerateDailyReport recomputes trade_details and daily_reports for a
// trading date from its recorded execution events, via FIFO lot matching.
func (r *Repository) GenerateDailyReport(tradingDate string) (DailyReport, error) {
	executions, err := r.listExecutionsForDate(tradingDate)
	if err != nil {
		return DailyReport{}, err
	}
	details, report := computeDailyReport(executions, tradingDate)
	if err := r.upsertTradeDetails(tradingDate, details); err != nil {
		return DailyReport{}, err
	}
	if err := r.upsertDailyReport(report); err != nil {
		return DailyReport{}, err
	}
	return report, nil
}

// ListTradeDetails returns the persisted trade details for a date, optionally
// filtered to one symbol.
func (r *Repository) ListTradeDetails(tradingDate, symbol string) ([]TradeDetail, error) {
	var rows *sql.Rows
	var err error
	if symbol != "" {
		rows, err = r.db.Query(`
			SELECT id, trading_date, symbol, buy_executed_at, sell_executed_at, quantity,
			       buy_price, sell_price, buy_amount, sell_amount, sell_tax, sell_fee, net_pnl, return_rate
			FROM trade_details
			WHERE trading_date = ? AND symbol = ?
			ORDER BY sell_executed_at ASC, id ASC`, tradingDate, symbol)
	} else {
		rows, err = r.db.Query(`
			SELECT id, trading_date, symbol, buy_executed_at, sell_executed_at, quantity,
			       buy_price, sell_price, buy_amount, sell_amount, sell_tax, sell_fee, net_pnl, return_rate
			FROM trade_details
			WHERE trading_date = ?
			ORDER BY sell_executed_at ASC, id ASC`, tradingDate)
	}
	if err != nil {
		return nil, fmt.Errorf("prp: list trade details: %w", err)
	}
	defer rows.Close()

	var result []TradeDetail
	for rows.Next() {
		var d TradeDetail
		var buyAt, sellAt, buyPrice, sellPrice, buyAmount, sellAmount, sellTax, sellFee, netPnl, returnRate string
		if err := rows.Scan(&d.ID, &d.TradingDate, &d.Symbol, &buyAt, &sellAt, &d.Quantity,
			&buyPrice, &sellPrice, &buyAmount, &sellAmount, &sellTax, &sellFee, &netPnl, &returnRate); err != nil {
			return nil, fmt.Errorf("prp: scan trade detail: %w", err)
		}
		d.BuyExecutedAt, _ = time.Parse(time.RFC3339Nano, buyAt)
		d.SellExecutedAt, _ = time.Parse(time.RFC3339Nano, sellAt)
		d.BuyPrice, _ = decimal.NewFromString(buyPrice)
		d.SellPrice, _ = decimal.NewFromString(sellPrice)
		d.BuyAmount, _ = decimal.NewFromString(buyAmount)
		d.SellAmount, _ = decimal.NewFromString(sellAmount)
		d.SellTax, _ = decimal.NewFromString(sellTax)
		d.SellFee, _ = decimal.NewFromString(sellFee)
		d.NetPnl, _ = decimal.NewFromString(netPnl)
		d.ReturnRate, _ = decimal.NewFromString(returnRate)
		result = append(result, d)
	}
	return result, rows.Err()
}
