package opm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitionOrderStatus_AllowedPath(t *testing.T) {
	order := OrderAggregate{Status: StatusPendingSubmit}
	now := time.Now()
	assert.NoError(t, TransitionOrderStatus(&order, StatusSubmitted, now))
	assert.Equal(t, StatusSubmitted, order.Status)
	assert.Equal(t, now, order.LastUpdatedAt)

	assert.NoError(t, TransitionOrderStatus(&order, StatusAccepted, now))
	assert.NoError(t, TransitionOrderStatus(&order, StatusPartiallyFilled, now))
	assert.NoError(t, TransitionOrderStatus(&order, StatusFilled, now))
}

func TestTransitionOrderStatus_RejectsIllegalJump(t *testing.T) {
	order := OrderAggregate{Status: StatusPendingSubmit}
	err := TransitionOrderStatus(&order, StatusFilled, time.Now())
	assert.Error(t, err)
	assert.Equal(t, StatusPendingSubmit, order.Status)
}

func TestTransitionOrderStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []OrderStatus{StatusFilled, StatusRejected, StatusCanceled} {
		order := OrderAggregate{Status: terminal}
		err := TransitionOrderStatus(&order, StatusAccepted, time.Now())
		assert.Error(t, err, "expected %s to be terminal", terminal)
	}
}

func TestTransitionOrderStatus_ReconcilingCanResolveEitherWay(t *testing.T) {
	for _, next := range []OrderStatus{StatusAccepted, StatusPartiallyFilled, StatusFilled, StatusRejected} {
		order := OrderAggregate{Status: StatusReconciling}
		assert.NoError(t, TransitionOrderStatus(&order, next, time.Now()))
	}
}
