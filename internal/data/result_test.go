package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_Equals(t *testing.T) {
	p1 := Parameters{Users: 100, Attackers: 5, Capacity: 10, RiskConstant: 1, RiskPerBucket: 0.5, AttackProbability: 1, MaxTicks: 20, Seed: 3}
	p2 := p1
	assert.True(t, p1.Equals(&p2))

	p3 := p1
	p3.Seed = 4
	assert.False(t, p1.Equals(&p3))

	p4 := p1
	p4.EvictIsolated = true
	assert.False(t, p1.Equals(&p4))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Observe(TickMetrics{Tick: 1, Buckets: 4}))
	require.NoError(t, r.Observe(TickMetrics{Tick: 2, Buckets: 6}))

	ticks := r.Ticks()
	require.Len(t, ticks, 2)
	assert.Equal(t, 6, ticks[1].Buckets)

	ticks[0].Buckets = 100
	assert.Equal(t, 4, r.Ticks()[0].Buckets)
}

func TestResult_Last(t *testing.T) {
	r := Result{RunId: "a"}
	assert.Equal(t, "a", r.Last().RunId)
	assert.Zero(t, r.Last().Tick)

	r.Ticks = []TickMetrics{{Tick: 1}, {Tick: 2}}
	assert.Equal(t, 2, r.Last().Tick)
}
