package opm

import (
	"fmt"
	"time"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingSubmit:   {StatusSubmitted: true},
	StatusSubmitted:       {StatusAccepted: true, StatusRejected: true, StatusReconciling: true},
	StatusAccepted:        {StatusPartiallyFilled: true, StatusFilled: true, StatusCanceled: true, StatusReconciling: true},
	StatusPartiallyFilled: {StatusFilled: true, StatusCanceled: true, StatusReconciling: true},
	StatusReconciling:     {StatusAccepted: true, StatusPartiallyFilled: true, StatusFilled: true, StatusRejected: true},
	StatusFilled:          {},
	StatusRejected:        {},
	StatusCanceled:        {},
}

// TransitionOrderStatus moves order to next, rejecting any transition not
// named in allowedTransitions.
func TransitionOrderStatus(order *OrderAggregate, next OrderStatus, now time.Time) error {
	if !allowedTransitions[order.Status][next] {
		return fmt.Errorf("opm: invalid order transition %s -> %s", order.Status, next)
	}
	order.Status = next
	order.LastUpdatedAt = now
	return nil
}
