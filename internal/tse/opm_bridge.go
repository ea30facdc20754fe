package tse

import (
	"time"

	"kiatrader/internal/opm"
)

// MapOpmPositionEvent translates an opm position snapshot's state into the
// narrower vocabulary TSE's portfolio gate reacts to.
func MapOpmPositionEvent(position opm.PositionModel, updatedAt time.Time) PositionUpdateEvent {
	var mapped PositionState
	switch position.State {
	case opm.PositionFlat:
		mapped = PositionBuyFailed
	case opm.PositionLongOpen:
		mapped = PositionLongOpen
	case opm.PositionExiting:
		mapped = PositionSellRequested
	case opm.PositionClosed:
		mapped = PositionClosed
	default:
		mapped = PositionBuyRequested
	}

	if updatedAt.IsZero() {
		updatedAt = position.UpdatedAt
	}

	return PositionUpdateEvent{
		TradingDate:       position.TradingDate,
		Symbol:            position.Symbol,
		PositionState:     mapped,
		AvgBuyPrice:       position.AvgBuyPrice,
		CurrentPrice:      position.CurrentPrice,
		CurrentProfitRate: position.CurrentProfitRate,
		MaxProfitRate:     position.MaxProfitRate,
		MinProfitLocked:   position.MinProfitLocked,
		UpdatedAt:         updatedAt,
	}
}
