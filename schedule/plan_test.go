package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectBatchPlan_LowTier(t *testing.T) {
	// Low rates keep one event per tick at the natural interval
	plan := SelectBatchPlan(1)
	assert.Equal(t, time.Minute, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)

	plan = SelectBatchPlan(20)
	assert.Equal(t, 3*time.Second, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)

	// Sub-integer rate stretches the interval beyond a minute
	plan = SelectBatchPlan(0.5)
	assert.Equal(t, 2*time.Minute, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)
}

func TestSelectBatchPlan_MidTier(t *testing.T) {
	// Just above the low tier the batch stays at one event and the
	// interval stretches to the natural spacing.
	plan := SelectBatchPlan(21)
	assert.Equal(t, time.Minute/21, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)

	plan = SelectBatchPlan(600)
	assert.Equal(t, 100*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)

	plan = SelectBatchPlan(1000)
	assert.Equal(t, 120*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 2, plan.EventsPerTick)
}

func TestSelectBatchPlan_HighTier(t *testing.T) {
	plan := SelectBatchPlan(1001)
	assert.Equal(t, time.Minute/1001, plan.TickInterval)
	assert.Equal(t, 1, plan.EventsPerTick)

	plan = SelectBatchPlan(6000)
	assert.Equal(t, 50*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 5, plan.EventsPerTick)

	plan = SelectBatchPlan(10000)
	assert.Equal(t, 54*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 9, plan.EventsPerTick)
}

func TestSelectBatchPlan_ExtremeTier(t *testing.T) {
	// Above the high tier the tick interval is floored, never shortened
	plan := SelectBatchPlan(12000)
	assert.Equal(t, 10*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 2, plan.EventsPerTick)

	plan = SelectBatchPlan(600000)
	assert.Equal(t, 10*time.Millisecond, plan.TickInterval)
	assert.Equal(t, 100, plan.EventsPerTick)
}

func TestSelectBatchPlan_NeverBelowFloor(t *testing.T) {
	for _, freq := range []float64{25, 500, 1000, 5000, 10000, 50000, 1000000} {
		plan := SelectBatchPlan(freq)
		assert.GreaterOrEqual(t, plan.TickInterval, MinTickInterval, "frequency %v", freq)
		assert.GreaterOrEqual(t, plan.EventsPerTick, 1, "frequency %v", freq)
	}
}

func TestSelectBatchPlan_ZeroAndNegative(t *testing.T) {
	assert.Equal(t, BatchPlan{}, SelectBatchPlan(0))
	assert.Equal(t, BatchPlan{}, SelectBatchPlan(-5))
}

func TestSelectBatchPlan_Deterministic(t *testing.T) {
	for _, freq := range []float64{3, 42, 999, 5000, 250000} {
		first := SelectBatchPlan(freq)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, SelectBatchPlan(freq))
		}
	}
}

func TestBatchPlan_RatePerMinuteAccuracy(t *testing.T) {
	// The derived plan sustains the target rate within 10 percent
	// across every tier.
	frequencies := []float64{1, 10, 20, 21, 50, 300, 999, 1000, 1001, 2500, 9999, 10000, 12000, 60000, 500000}

	for _, freq := range frequencies {
		plan := SelectBatchPlan(freq)
		rate := plan.RatePerMinute()
		assert.InDelta(t, freq, rate, freq*0.1, "frequency %v produced rate %v", freq, rate)
	}
}
