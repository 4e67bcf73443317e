package simulation

import (
	"context"
	"testing"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/metrics"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/shuffle"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func small() data.Parameters {
	return data.Parameters{
		Users:             20,
		Attackers:         2,
		Capacity:          5,
		RiskConstant:      1,
		RiskPerBucket:     0.5,
		AttackProbability: 1,
		MaxTicks:          200,
		Seed:              7,
		EvictIsolated:     true,
		StopWhenClean:     true,
	}
}

func withoutRunId(ticks []data.TickMetrics) []data.TickMetrics {
	ret := make([]data.TickMetrics, len(ticks))
	for i, m := range ticks {
		m.RunId = ""
		ret[i] = m
	}
	return ret
}

func TestNewInstance_Preconditions(t *testing.T) {
	p := small()
	p.Attackers = p.Users + 1
	_, err := NewInstance(p)
	assert.True(t, errs.IsPrecondition(err))

	p = small()
	p.Capacity = 0
	_, err = NewInstance(p)
	assert.True(t, errs.IsPrecondition(err))

	p = small()
	p.RiskConstant = 0
	_, err = NewInstance(p)
	assert.True(t, errs.IsPrecondition(err))

	p = small()
	p.RiskPerBucket = 0
	_, err = NewInstance(p)
	assert.True(t, errs.IsPrecondition(err))
}

func TestNewInstance_PopulatesBuckets(t *testing.T) {
	inst, err := NewInstance(small())
	require.NoError(t, err)
	m := inst.Manager.Metrics()
	assert.Equal(t, 4, m.Buckets)
	assert.Equal(t, 20, m.Users)
	assert.Equal(t, 5.0, m.AverageOccupancy)
	assert.NotEmpty(t, inst.RunId)
}

func TestRun_EvictsEveryAttacker(t *testing.T) {
	result, err := Run(context.Background(), small(), nil)
	require.NoError(t, err)

	assert.True(t, result.Clean)
	assert.Equal(t, string(shuffle.StopClean), result.Reason)
	require.NotEmpty(t, result.Ticks)

	last := result.Last()
	assert.Equal(t, 0, last.RemainingAttackers)
	assert.Equal(t, 2, last.EvictedAttackers)
	assert.Equal(t, 0, last.EvictedBenign)
	assert.Equal(t, 18, last.Users)
	assert.LessOrEqual(t, len(result.Suspects), topSuspects)
	for i := 1; i < len(result.Suspects); i++ {
		assert.GreaterOrEqual(t, result.Suspects[i-1].Risk, result.Suspects[i].Risk)
	}
	for i, m := range result.Ticks {
		assert.Equal(t, i+1, m.Tick)
		assert.Equal(t, result.RunId, m.RunId)
	}
}

func TestRun_Deterministic(t *testing.T) {
	p := small()
	p.ShuffleBeforeSplit = true
	p.AttackProbability = 0.6
	first, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	second, err := Run(context.Background(), p, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunId, second.RunId)
	assert.Equal(t, withoutRunId(first.Ticks), withoutRunId(second.Ticks))
}

func TestRun_NoAttackersIsCleanImmediately(t *testing.T) {
	p := small()
	p.Attackers = 0
	result, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Clean)
	assert.Empty(t, result.Ticks)
	assert.Equal(t, string(shuffle.StopClean), result.Reason)
	assert.Empty(t, result.Suspects)
}

func TestRun_MaxTicks(t *testing.T) {
	p := small()
	p.AttackProbability = 0
	p.MaxTicks = 5
	result, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, result.Clean)
	assert.Equal(t, string(shuffle.StopMaxTicks), result.Reason)
	assert.Len(t, result.Ticks, 5)
	assert.Equal(t, 4, result.Last().Buckets)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Run(ctx, small(), nil)
	require.NoError(t, err)
	assert.Equal(t, string(shuffle.StopCancelled), result.Reason)
	assert.Empty(t, result.Ticks)
}

func TestRun_RevealedAttackersAreEvicted(t *testing.T) {
	p := small()
	p.EvictIsolated = false
	p.RevealProbability = 1
	result, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Clean)
	// every attacker attacks on the first tick and is confirmed right away
	require.Len(t, result.Ticks, 1)
	assert.Equal(t, 2, result.Last().EvictedAttackers)
	assert.Equal(t, 0, result.Last().EvictedBenign)
}

func TestRun_SinkSeesGroundTruth(t *testing.T) {
	rec := data.NewRecorder()
	result, err := Run(context.Background(), small(), rec)
	require.NoError(t, err)
	assert.Equal(t, result.Ticks, rec.Ticks())
}

func TestRunMany(t *testing.T) {
	registry := metrics.NewRegistry()
	results, err := RunMany(context.Background(), small(), 4, 2, registry)
	require.NoError(t, err)
	require.Len(t, results, 4)

	ids := make(map[string]bool)
	for i, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, small().Seed+int64(i), r.P.Seed)
		assert.True(t, r.Clean)
		ids[r.RunId] = true
		assert.Equal(t, float64(r.Last().Buckets), testutil.ToFloat64(registry.Buckets.WithLabelValues(r.RunId)))
	}
	assert.Len(t, ids, 4)
}

func TestRunMany_Preconditions(t *testing.T) {
	_, err := RunMany(context.Background(), small(), 0, 1, nil)
	assert.True(t, errs.IsPrecondition(err))
	_, err = RunMany(context.Background(), small(), 1, 0, nil)
	assert.True(t, errs.IsPrecondition(err))
}
