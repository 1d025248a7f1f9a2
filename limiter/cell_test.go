package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/gateway/model"
)

func TestCell_TryAdmit_AdmitsWithinBurst(t *testing.T) {
	cell := NewCell(model.Limit{Count: 5, Kind: model.LimitItemRequest, Per: time.Minute})
	now := time.Unix(0, 0)

	for i := 0; i < 5; i++ {
		outcome := cell.TryAdmit(now, 1)
		require.Equal(t, StatusReady, outcome.Status, "admission %d should be ready", i)
	}

	outcome := cell.TryAdmit(now, 1)
	require.Equal(t, StatusWaitUntil, outcome.Status, "6th request in the same instant should have to wait")
	require.True(t, outcome.AllowAt.After(now))
}

func TestCell_TryAdmit_ReplenishesOverTime(t *testing.T) {
	cell := NewCell(model.Limit{Count: 1, Kind: model.LimitItemRequest, Per: time.Second})
	now := time.Unix(0, 0)

	require.Equal(t, StatusReady, cell.TryAdmit(now, 1).Status)
	require.Equal(t, StatusWaitUntil, cell.TryAdmit(now, 1).Status)

	later := now.Add(time.Second)
	require.Equal(t, StatusReady, cell.TryAdmit(later, 1).Status)
}

func TestCell_TryAdmit_Oversized(t *testing.T) {
	cell := NewCell(model.Limit{Count: 100, Kind: model.LimitItemToken, Per: 8 * time.Second})
	outcome := cell.TryAdmit(time.Unix(0, 0), 101)
	require.Equal(t, StatusOversized, outcome.Status)
}

func TestCell_Reserve_ReadyDoesNotBlock(t *testing.T) {
	cell := NewCell(model.Limit{Count: 5, Kind: model.LimitItemRequest, Per: time.Minute})
	outcome, err := cell.Reserve(context.Background(), time.Unix(0, 0), 1)
	require.NoError(t, err)
	require.Equal(t, StatusReady, outcome.Status)
}

func TestCell_Reserve_CancelledWhileWaiting(t *testing.T) {
	cell := NewCell(model.Limit{Count: 1, Kind: model.LimitItemRequest, Per: time.Hour})
	now := time.Now()

	_, err := cell.Reserve(context.Background(), now, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cell.Reserve(ctx, now, 1)
	require.Error(t, err)
}

func TestCell_Refund_RegressesTAT(t *testing.T) {
	cell := NewCell(model.Limit{Count: 128, Kind: model.LimitItemToken, Per: 8 * time.Second})
	now := time.Unix(0, 0)

	outcome, err := cell.Reserve(context.Background(), now, 100)
	require.NoError(t, err)
	require.Equal(t, StatusReady, outcome.Status)

	tatBefore, _ := cell.TAT()
	cell.Refund(now, 100, 20)
	tatAfter, _ := cell.TAT()
	require.True(t, tatAfter.Before(tatBefore), "refund should regress TAT")
}

func TestCell_Refund_NoOpWhenActualMeetsOrExceedsReserved(t *testing.T) {
	cell := NewCell(model.Limit{Count: 128, Kind: model.LimitItemToken, Per: 8 * time.Second})
	now := time.Unix(0, 0)

	_, err := cell.Reserve(context.Background(), now, 100)
	require.NoError(t, err)

	tatBefore, _ := cell.TAT()
	cell.Refund(now, 100, 100)
	tatAfter, _ := cell.TAT()
	require.Equal(t, tatBefore, tatAfter)
}

func TestCell_SettleOvershoot_NeverBlocks(t *testing.T) {
	cell := NewCell(model.Limit{Count: 10, Kind: model.LimitItemToken, Per: time.Second})
	now := time.Unix(0, 0)

	_, err := cell.Reserve(context.Background(), now, 5)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		cell.SettleOvershoot(now, 5, 50)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("SettleOvershoot must return immediately, never block")
	}

	_, ok := cell.TAT()
	require.True(t, ok)
}

func TestCell_SettleOvershoot_AdvancesTATForFutureAdmission(t *testing.T) {
	cell := NewCell(model.Limit{Count: 10, Kind: model.LimitItemToken, Per: time.Second})
	now := time.Unix(0, 0)

	_, err := cell.Reserve(context.Background(), now, 2)
	require.NoError(t, err)

	outcome := cell.SettleOvershoot(now, 2, 12)
	require.Equal(t, StatusWaitUntil, outcome.Status, "a large overshoot should push future admissions out")

	next := cell.TryAdmit(now, 1)
	require.Equal(t, StatusWaitUntil, next.Status)
}
