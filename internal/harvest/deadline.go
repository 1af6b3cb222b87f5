package harvest

import (
	"fmt"
	"time"
)

// Deadline tracks elapsed wall time against the fixed run budget. It is
// created once at run start and only ever read afterwards; every
// I/O-issuing stage calls Ensure before touching the network.
type Deadline struct {
	start  time.Time
	budget time.Duration
	now    func() time.Time
}

// NewDeadline starts the clock against the given budget.
func NewDeadline(budget time.Duration) *Deadline {
	return NewDeadlineAt(budget, time.Now)
}

// NewDeadlineAt is NewDeadline with an injectable clock.
func NewDeadlineAt(budget time.Duration, now func() time.Time) *Deadline {
	return &Deadline{
		start:  now(),
		budget: budget,
		now:    now,
	}
}

// Remaining reports how much of the budget is left. Never negative.
func (d *Deadline) Remaining() time.Duration {
	left := d.budget - d.now().Sub(d.start)
	if left < 0 {
		return 0
	}
	return left
}

// Ensure fails fast with ErrDeadlineExceeded when no budget remains. The
// label names the stage so the failure says where time ran out.
func (d *Deadline) Ensure(label string) error {
	if d.Remaining() <= 0 {
		return fmt.Errorf("%s: %w", label, ErrDeadlineExceeded)
	}
	return nil
}

// Bound caps a wait duration so it never exceeds the remaining budget.
func (d *Deadline) Bound(wait time.Duration) time.Duration {
	if left := d.Remaining(); wait > left {
		return left
	}
	return wait
}
