package display

import (
	"os"
	"testing"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHistogram(t *testing.T) {
	hist := computeHistogram([]float64{1, 2, 2, 3, 5}, 4)
	require.Len(t, hist, 4)
	assert.Equal(t, 1.0, hist[0].key)
	assert.Equal(t, 1.0, hist[0].interval)
	counts := []float64{hist[0].count, hist[1].count, hist[2].count, hist[3].count}
	assert.Equal(t, []float64{1, 2, 1, 1}, counts)

	same := computeHistogram([]float64{4, 4, 4}, 3)
	assert.Equal(t, 3.0, same[2].count)

	assert.Empty(t, computeHistogram(nil, 3))
}

func result(seed int64, buckets ...int) *data.Result {
	r := &data.Result{P: data.Parameters{Seed: seed}}
	for i, b := range buckets {
		r.Ticks = append(r.Ticks, data.TickMetrics{Tick: i + 1, Buckets: b, AverageOccupancy: 10 / float64(b), RemainingAttackers: len(buckets) - i - 1})
	}
	return r
}

func TestPlotRuns(t *testing.T) {
	dir := t.TempDir()
	images, err := PlotRuns([]*data.Result{result(1, 2, 3, 5), result(2, 2, 4), result(3)}, dir, 3)
	require.NoError(t, err)

	for _, path := range []string{images.Buckets, images.Occupancy, images.Attackers, images.Duration} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestPlotRuns_Empty(t *testing.T) {
	_, err := PlotRuns(nil, t.TempDir(), 3)
	assert.True(t, errs.IsPrecondition(err))
}
