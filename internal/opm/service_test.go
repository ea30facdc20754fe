package opm

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiatrader/internal/prp"
)

type fakeRepo struct {
	orderEvents     []prp.OrderEvent
	executionEvents map[string]prp.ExecutionEvent
	snapshots       []prp.PositionSnapshot
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{executionEvents: make(map[string]prp.ExecutionEvent)}
}

func (f *fakeRepo) AppendOrderEvent(e prp.OrderEvent) error {
	f.orderEvents = append(f.orderEvents, e)
	return nil
}

func (f *fakeRepo) AppendExecutionEvent(e prp.ExecutionEvent) (bool, error) {
	if _, exists := f.executionEvents[e.ExecutionID]; exists {
		return false, nil
	}
	f.executionEvents[e.ExecutionID] = e
	return true, nil
}

func (f *fakeRepo) SaveStateSnapshot(s prp.PositionSnapshot) error {
	f.snapshots = append(f.snapshots, s)
	return nil
}

func TestCreateOrder_StartsPendingSubmitWithRemainingQty(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	now := time.Now()

	order, err := svc.CreateOrder("2026-07-31", "005930", SideBuy, decimal.RequireFromString("70000"), 10, now, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSubmit, order.Status)
	assert.Equal(t, 10, order.RemainingQty)
	assert.NotEmpty(t, order.ClientOrderID)
	assert.Len(t, repo.orderEvents, 1)
}

func TestReconcileExecutionEvents_PartialThenFullFillUpdatesOrderAndPosition(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	now := time.Now()

	order, err := svc.CreateOrder("2026-07-31", "005930", SideBuy, decimal.RequireFromString("70000"), 10, now, "")
	require.NoError(t, err)
	order.Status = StatusAccepted
	position := NewEmptyPosition("2026-07-31", "005930", now)

	fill1 := ExecutionFill{ExecutionID: "exec-1", Symbol: "005930", Side: SideBuy, Price: decimal.RequireFromString("70000"), Qty: 4, ExecutedAt: now}
	order, position, applied, err := svc.ReconcileExecutionEvents(order, position, []ExecutionFill{fill1}, 6, decimal.RequireFromString("70500"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, StatusPartiallyFilled, order.Status)
	assert.Equal(t, 4, order.CumExecutedQty)
	assert.Equal(t, 4, position.Quantity)
	assert.Equal(t, PositionLongOpen, position.State)

	fill2 := ExecutionFill{ExecutionID: "exec-2", Symbol: "005930", Side: SideBuy, Price: decimal.RequireFromString("71000"), Qty: 6, ExecutedAt: now}
	order, position, applied, err = svc.ReconcileExecutionEvents(order, position, []ExecutionFill{fill2}, 0, decimal.RequireFromString("71200"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, StatusFilled, order.Status)
	assert.Equal(t, 10, order.CumExecutedQty)
	assert.Equal(t, 10, position.Quantity)
	assert.True(t, order.AvgExecutedPrice.Equal(decimal.RequireFromString("70600")))
	assert.Len(t, repo.snapshots, 2)
}

func TestReconcileExecutionEvents_DuplicateExecutionIDIsNotAppliedTwice(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	now := time.Now()

	order, err := svc.CreateOrder("2026-07-31", "005930", SideBuy, decimal.RequireFromString("70000"), 10, now, "")
	require.NoError(t, err)
	order.Status = StatusAccepted
	position := NewEmptyPosition("2026-07-31", "005930", now)

	fill := ExecutionFill{ExecutionID: "exec-dup", Symbol: "005930", Side: SideBuy, Price: decimal.RequireFromString("70000"), Qty: 10, ExecutedAt: now}
	order, position, applied, err := svc.ReconcileExecutionEvents(order, position, []ExecutionFill{fill}, 0, decimal.RequireFromString("70000"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	order, position, applied, err = svc.ReconcileExecutionEvents(order, position, []ExecutionFill{fill}, 0, decimal.RequireFromString("70000"), now)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 10, position.Quantity)
}

func TestRefreshInterimMetrics_LocksMinProfitAtOnePercent(t *testing.T) {
	position := NewEmptyPosition("2026-07-31", "005930", time.Now())
	position.Quantity = 10
	position.AvgBuyPrice = decimal.RequireFromString("10000")
	position.CurrentPrice = decimal.RequireFromString("10200")

	refreshInterimMetrics(&position)
	assert.True(t, position.MinProfitLocked)
	assert.True(t, position.CurrentProfitRate.GreaterThanOrEqual(decimal.NewFromInt(1)))
}

func TestRefreshInterimMetrics_ZeroPositionYieldsZeroProfitRate(t *testing.T) {
	position := NewEmptyPosition("2026-07-31", "005930", time.Now())
	refreshInterimMetrics(&position)
	assert.True(t, position.CurrentProfitRate.IsZero())
}

func TestComputeSellPrice_AlignsToTickLadder(t *testing.T) {
	svc := NewService(newFakeRepo())
	price, err := svc.ComputeSellPrice(decimal.RequireFromString("70500"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("70300")))
}
