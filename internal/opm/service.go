package opm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kiatrader/internal/logging"
	"kiatrader/internal/prp"
	"kiatrader/internal/rules"
)

// positionEventStore is the slice of *prp.Repository the order/position
// manager needs; narrowed to an interface so tests can fake it.
type positionEventStore interface {
	AppendOrderEvent(e prp.OrderEvent) error
	AppendExecutionEvent(e prp.ExecutionEvent) (bool, error)
	SaveStateSnapshot(s prp.PositionSnapshot) error
}

// Service owns order-aggregate lifecycle and position P&L reconciliation,
// persisting every transition and fill through the prp event store.
type Service struct {
	repo positionEventStore
}

// NewService builds a Service backed by repo.
func NewService(repo positionEventStore) *Service {
	return &Service{repo: repo}
}

// CreateOrder starts a new order aggregate in PENDING_SUBMIT and persists
// its initial order event.
func (s *Service) CreateOrder(tradingDate, symbol string, side Side, requestedPrice decimal.Decimal, requestedQty int, now time.Time, clientOrderID string) (OrderAggregate, error) {
	orderID := "opm-" + tradingDate + "-" + symbol + "-" + string(side) + "-" + shortID()
	if clientOrderID == "" {
		clientOrderID = tradingDate + "-" + symbol + "-" + string(side) + "-" + shortID()
	}
	order := OrderAggregate{
		OrderAggregateID: orderID,
		TradingDate:      tradingDate,
		Symbol:           symbol,
		Side:             side,
		OrderType:        OrderTypeLimit,
		RequestedPrice:   requestedPrice,
		RequestedQty:     requestedQty,
		Status:           StatusPendingSubmit,
		ClientOrderID:    clientOrderID,
		AvgExecutedPrice: decimal.Zero,
		RemainingQty:     requestedQty,
		LastUpdatedAt:    now,
	}
	if err := s.persistOrderEvent(order); err != nil {
		return OrderAggregate{}, err
	}
	return order, nil
}

// MoveOrderStatus advances order through the state machine and persists the
// resulting order event.
func (s *Service) MoveOrderStatus(order OrderAggregate, next OrderStatus, now time.Time, brokerOrderID, lastErrorCode string) (OrderAggregate, error) {
	if err := TransitionOrderStatus(&order, next, now); err != nil {
		return order, err
	}
	if brokerOrderID != "" {
		order.BrokerOrderID = brokerOrderID
	}
	if lastErrorCode != "" {
		order.LastErrorCode = lastErrorCode
	}
	if err := s.persistOrderEvent(order); err != nil {
		return order, err
	}
	return order, nil
}

// ComputeSellPrice delegates to the shared tick-ladder rule.
func (s *Service) ComputeSellPrice(currentPrice decimal.Decimal) (decimal.Decimal, error) {
	return rules.SellLimitPrice(currentPrice)
}

// ReconcileExecutionEvents applies each broker fill (deduplicated by
// execution id via the prp repository) to the order and the position,
// refreshes the position's mark-to-market P&L, and persists both. Returns
// the updated order, position, and the count of fills newly applied (fills
// already recorded by execution id are skipped).
func (s *Service) ReconcileExecutionEvents(order OrderAggregate, position PositionModel, fills []ExecutionFill, brokerRemainingQty int, latestMarketPrice decimal.Decimal, now time.Time) (OrderAggregate, PositionModel, int, error) {
	applied := 0

	for _, fill := range fills {
		cumAfter := order.CumExecutedQty + fill.Qty
		remainingAfter := order.RequestedQty - cumAfter
		if remainingAfter < 0 {
			remainingAfter = 0
		}
		persisted, err := s.repo.AppendExecutionEvent(prp.ExecutionEvent{
			EventID:        "evt-exe-" + shortID(),
			ExecutionID:    fill.ExecutionID,
			OrderID:        order.OrderAggregateID,
			OccurredAt:     fill.ExecutedAt,
			TradingDate:    order.TradingDate,
			Symbol:         fill.Symbol,
			Side:           string(fill.Side),
			ExecutionPrice: fill.Price,
			ExecutionQty:   fill.Qty,
			CumQty:         cumAfter,
			RemainingQty:   remainingAfter,
		})
		if err != nil {
			return order, position, applied, err
		}
		if !persisted {
			continue
		}

		applied++
		applyFillToOrder(&order, fill)
		applyFillToPosition(&position, order.Side, fill)
	}

	if brokerRemainingQty < 0 {
		brokerRemainingQty = 0
	}
	order.RemainingQty = brokerRemainingQty
	if order.RemainingQty == 0 && order.CumExecutedQty >= order.RequestedQty {
		if order.Status == StatusAccepted || order.Status == StatusPartiallyFilled || order.Status == StatusReconciling {
			order.Status = StatusFilled
		}
	} else if order.CumExecutedQty > 0 {
		if order.Status == StatusAccepted || order.Status == StatusReconciling {
			order.Status = StatusPartiallyFilled
		}
	}
	order.LastUpdatedAt = now
	if err := s.persistOrderEvent(order); err != nil {
		return order, position, applied, err
	}

	position.CurrentPrice = latestMarketPrice
	refreshInterimMetrics(&position)
	position.UpdatedAt = now
	if err := s.persistPositionSnapshot(position, order.OrderAggregateID); err != nil {
		return order, position, applied, err
	}

	logging.Infof("opm: reconciled order=%s applied_fills=%d status=%s position_qty=%d profit_rate=%s",
		order.OrderAggregateID, applied, order.Status, position.Quantity, position.CurrentProfitRate.String())

	return order, position, applied, nil
}

func applyFillToOrder(order *OrderAggregate, fill ExecutionFill) {
	prevQty := order.CumExecutedQty
	newQty := prevQty + fill.Qty
	if newQty <= 0 {
		return
	}

	totalNotional := order.AvgExecutedPrice.Mul(decimal.NewFromInt(int64(prevQty))).Add(fill.Price.Mul(decimal.NewFromInt(int64(fill.Qty))))
	order.AvgExecutedPrice = totalNotional.Div(decimal.NewFromInt(int64(newQty))).Round(4)
	order.CumExecutedQty = newQty
	order.RemainingQty = order.RequestedQty - order.CumExecutedQty
	if order.RemainingQty < 0 {
		order.RemainingQty = 0
	}
}

func applyFillToPosition(position *PositionModel, side Side, fill ExecutionFill) {
	if side == SideBuy {
		newQty := position.Quantity + fill.Qty
		position.BuyNotional = position.BuyNotional.Add(fill.Price.Mul(decimal.NewFromInt(int64(fill.Qty))))
		position.Quantity = newQty
		if newQty > 0 {
			position.AvgBuyPrice = position.BuyNotional.Div(decimal.NewFromInt(int64(newQty))).Round(4)
		}
		position.State = PositionLongOpen
	} else {
		fillQty := fill.Qty
		if fillQty > position.Quantity {
			fillQty = position.Quantity
		}
		position.SellNotional = position.SellNotional.Add(fill.Price.Mul(decimal.NewFromInt(int64(fillQty))))
		position.SellQuantity += fillQty
		position.Quantity -= fillQty
		if position.SellQuantity > 0 {
			position.AvgSellPrice = position.SellNotional.Div(decimal.NewFromInt(int64(position.SellQuantity))).Round(4)
		}
		if position.Quantity == 0 {
			position.State = PositionClosed
		} else {
			position.State = PositionExiting
		}
	}
	position.StateVersion++
}

func refreshInterimMetrics(position *PositionModel) {
	qty := decimal.NewFromInt(int64(position.Quantity))
	markToMarket := position.CurrentPrice.Mul(qty)
	position.GrossInterimPnl = markToMarket.Sub(position.AvgBuyPrice.Mul(qty))
	position.EstimatedSellTax = markToMarket.Mul(rules.SellTaxRate).Round(4)
	position.EstimatedSellFee = markToMarket.Mul(rules.SellFeeRate).Round(4)
	position.NetInterimPnl = position.GrossInterimPnl.Sub(position.EstimatedSellTax).Sub(position.EstimatedSellFee)

	buyNotional := position.AvgBuyPrice.Mul(qty)
	if buyNotional.GreaterThan(decimal.Zero) {
		position.CurrentProfitRate = position.NetInterimPnl.Div(buyNotional).Mul(decimal.NewFromInt(100)).Round(4)
	} else {
		position.CurrentProfitRate = decimal.Zero
	}

	if position.CurrentProfitRate.GreaterThan(position.MaxProfitRate) {
		position.MaxProfitRate = position.CurrentProfitRate
	}
	if rules.GeWithEps(position.CurrentProfitRate, rules.MinProfitLockPct) {
		position.MinProfitLocked = true
	}
}

func (s *Service) persistOrderEvent(order OrderAggregate) error {
	return s.repo.AppendOrderEvent(prp.OrderEvent{
		EventID:        "evt-ord-" + shortID(),
		OrderID:        order.OrderAggregateID,
		OccurredAt:     order.LastUpdatedAt,
		TradingDate:    order.TradingDate,
		Symbol:         order.Symbol,
		Side:           string(order.Side),
		OrderType:      string(order.OrderType),
		OrderPrice:     order.RequestedPrice,
		Quantity:       order.RequestedQty,
		Status:         string(order.Status),
		ClientOrderKey: order.ClientOrderID,
		ReasonCode:     order.LastErrorCode,
	})
}

func (s *Service) persistPositionSnapshot(position PositionModel, lastOrderID string) error {
	return s.repo.SaveStateSnapshot(prp.PositionSnapshot{
		SnapshotID:        "snap-" + shortID(),
		SavedAt:           position.UpdatedAt,
		TradingDate:       position.TradingDate,
		Symbol:            position.Symbol,
		AvgBuyPrice:       position.AvgBuyPrice,
		Quantity:          position.Quantity,
		CurrentProfitRate: position.CurrentProfitRate,
		MaxProfitRate:     position.MaxProfitRate,
		MinProfitLocked:   position.MinProfitLocked,
		LastOrderID:       lastOrderID,
		StateVersion:      position.StateVersion,
	})
}

func shortID() string {
	return uuid.New().String()[:8]
}
