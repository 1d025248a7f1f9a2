// Package limiter implements the GCRA-style rate-limit cell and the
// two-phase admission bundle built from it (spec §4.1, §4.2).
package limiter

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/model"
)

// Status is the outcome of a (non-blocking) admission check against a cell.
type Status int

const (
	// StatusReady means the cost was admitted and the cell's TAT was updated.
	StatusReady Status = iota
	// StatusWaitUntil means the cost cannot be admitted until AllowAt; the
	// cell's TAT was not mutated.
	StatusWaitUntil
	// StatusOversized means cost exceeds the cell's burst capacity and can
	// never be admitted on this cell, regardless of wait.
	StatusOversized
)

// Outcome is the result of TryAdmit.
type Outcome struct {
	Status  Status
	AllowAt time.Time
}

// Cell is one GCRA window over a single Limit. A zero-value tat means "no
// prior arrivals"; the first admission treats tat as if it were now.
//
// Cells are not safe for concurrent use: per spec §5, a cell's TAT is
// mutated only by its owning model worker's goroutine.
type Cell struct {
	kind             model.LimitItem
	count            int64
	emissionInterval time.Duration
	burst            time.Duration

	tat    time.Time
	tatSet bool
}

// NewCell builds a Cell from a Limit, clamping Count to at least 1 (§8).
func NewCell(l model.Limit) *Cell {
	l = l.Normalized()
	return &Cell{
		kind:             l.Kind,
		count:            l.Count,
		emissionInterval: l.Per / time.Duration(l.Count),
		burst:            l.Per,
	}
}

// Kind reports whether this cell counts requests or tokens.
func (c *Cell) Kind() model.LimitItem { return c.kind }

// TryAdmit implements §4.1's try_admit: a non-blocking admission check.
func (c *Cell) TryAdmit(now time.Time, cost int64) Outcome {
	if cost > c.count {
		return Outcome{Status: StatusOversized}
	}

	base := now
	if c.tatSet && c.tat.After(base) {
		base = c.tat
	}
	newTAT := base.Add(time.Duration(cost) * c.emissionInterval)
	allowAt := newTAT.Add(-c.burst)

	if !allowAt.After(now) {
		c.tat = newTAT
		c.tatSet = true
		return Outcome{Status: StatusReady}
	}
	return Outcome{Status: StatusWaitUntil, AllowAt: allowAt}
}

// Reserve implements §4.1's reserve: the blocking variant used by the model
// worker. On WaitUntil it sleeps until AllowAt (or ctx is cancelled) and
// then commits tat := allowAt + cost*emissionInterval.
func (c *Cell) Reserve(ctx context.Context, now time.Time, cost int64) (Outcome, error) {
	outcome := c.TryAdmit(now, cost)
	switch outcome.Status {
	case StatusOversized, StatusReady:
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return outcome, errors.Wrap(err, "reserve cancelled while waiting")
	}

	timer := time.NewTimer(time.Until(outcome.AllowAt))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return outcome, errors.Wrap(ctx.Err(), "reserve cancelled while waiting")
	}

	c.tat = outcome.AllowAt.Add(time.Duration(cost) * c.emissionInterval)
	c.tatSet = true
	return Outcome{Status: StatusReady, AllowAt: outcome.AllowAt}, nil
}

// Refund implements §4.1's refund: actualCost <= reservedCost. The TAT
// regresses by the unused cost, clamped so it never moves before
// now - burst (a refund cannot manufacture capacity from the past).
func (c *Cell) Refund(now time.Time, reservedCost, actualCost int64) {
	if actualCost >= reservedCost || !c.tatSet {
		return
	}
	delta := time.Duration(reservedCost-actualCost) * c.emissionInterval
	c.tat = c.tat.Add(-delta)

	floor := now.Add(-c.burst)
	if c.tat.Before(floor) {
		c.tat = floor
	}
}

// SettleOvershoot implements §4.2's settle-overshoot path: actualCost >
// reservedCost. It performs an additional, non-blocking reservation for the
// excess; if that would itself WaitUntil, the cell's TAT still advances to
// reflect the debt (so future admissions see the delay) but this call never
// blocks — the response has already been sent to the client (§7).
func (c *Cell) SettleOvershoot(now time.Time, reservedCost, actualCost int64) Outcome {
	excess := actualCost - reservedCost
	if excess <= 0 {
		return Outcome{Status: StatusReady}
	}

	if excess > c.count {
		// Oversized debt: the tokens were already spent upstream and there
		// is no "undo" on a completed response, only future pacing; the debt
		// committed to the TAT is capped at one full burst (count).
		excess = c.count
	}

	base := now
	if c.tatSet && c.tat.After(base) {
		base = c.tat
	}
	newTAT := base.Add(time.Duration(excess) * c.emissionInterval)
	allowAt := newTAT.Add(-c.burst)

	c.tat = newTAT
	c.tatSet = true

	if !allowAt.After(now) {
		return Outcome{Status: StatusReady}
	}
	return Outcome{Status: StatusWaitUntil, AllowAt: allowAt}
}

// TAT exposes the current theoretical-arrival-time for tests and diagnostics.
func (c *Cell) TAT() (time.Time, bool) {
	return c.tat, c.tatSet
}
