// Package schedule implements the live generation path: one frequency
// controller per configured source, batching events per tick so that
// timer count stays constant regardless of the configured rate, plus an
// optional worker pool for parallel batch production.
package schedule

import (
	"math"
	"time"
)

// Frequency tier boundaries in events per minute. The thresholds and the
// tick floor are empirically chosen and tunable; they are not derived
// from first principles.
const (
	// TierLowMax is the highest rate that keeps one event per tick at
	// its natural interval, preserving exact per-event timing.
	TierLowMax = 20

	// TierMidMax is the highest rate scheduled on 100ms ticks.
	TierMidMax = 1000

	// TierHighMax is the highest rate scheduled on 50ms ticks.
	TierHighMax = 10000

	// MinTickInterval is the scheduler floor. Ticks never fire more
	// often than this.
	MinTickInterval = 10 * time.Millisecond

	midTickInterval  = 100 * time.Millisecond
	highTickInterval = 50 * time.Millisecond
)

const millisPerMinute = 60000

// BatchPlan is the derived execution plan for one source: how often a
// tick fires and how many events each tick emits. The product
// eventsPerTick * ticksPerMinute approximates the target frequency
// within ±10%.
type BatchPlan struct {
	// TickInterval is the interval between scheduler ticks.
	TickInterval time.Duration

	// EventsPerTick is the number of events emitted on each tick.
	EventsPerTick int
}

// RatePerMinute returns the effective event rate the plan sustains.
func (p BatchPlan) RatePerMinute() float64 {
	ticksPerMinute := float64(time.Minute) / float64(p.TickInterval)
	return float64(p.EventsPerTick) * ticksPerMinute
}

// SelectBatchPlan buckets the target frequency (events per minute) into a
// tier and derives the tick interval and batch size for that tier. Low
// rates keep one event per tick at the natural interval for timing
// precision; high rates shorten the tick and grow the batch so total
// timer count stays bounded. The function is pure: the same frequency
// always yields the same plan.
func SelectBatchPlan(frequency float64) BatchPlan {
	if frequency <= 0 {
		// Callers validate before scheduling; a zero plan is inert.
		return BatchPlan{}
	}

	if frequency <= TierLowMax {
		// One event per tick at the natural interval, exact timing.
		return BatchPlan{
			TickInterval:  time.Duration(float64(time.Minute) / frequency),
			EventsPerTick: 1,
		}
	}

	var floor time.Duration
	switch {
	case frequency <= TierMidMax:
		floor = midTickInterval
	case frequency <= TierHighMax:
		floor = highTickInterval
	default:
		floor = MinTickInterval
	}

	// Size the batch for the tier's floor interval, then stretch the
	// interval to match the batch so the sustained rate stays exact.
	// The derived interval is never shorter than the floor.
	floorMillis := float64(floor / time.Millisecond)
	perTick := int(math.Ceil(frequency * floorMillis / millisPerMinute))
	if perTick < 1 {
		perTick = 1
	}

	interval := time.Duration(float64(perTick) / frequency * float64(time.Minute))
	if interval < floor {
		interval = floor
	}

	return BatchPlan{TickInterval: interval, EventsPerTick: perTick}
}
