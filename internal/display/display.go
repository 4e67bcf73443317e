package display

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"gonum.org/v1/plot/plotter"
)

var firstColor = color.RGBA{R: 217, G: 156, B: 201, A: 255}

// lines beyond this many runs are left out of the per-tick plots
const maxLines = 8

type Images struct {
	Buckets   string `json:"buckets_img"`
	Occupancy string `json:"occupancy_img"`
	Attackers string `json:"attackers_img"`
	Duration  string `json:"duration_img"`
}

// PlotRuns renders the per-tick evolution of the first runs and a histogram
// of run lengths into dir/plots, replacing whatever was there.
func PlotRuns(results []*data.Result, dir string, numBuckets int) (Images, error) {
	if len(results) == 0 {
		return Images{}, errs.Precondition("results", "must not be empty")
	}
	plotDir := filepath.Join(dir, "plots")
	if err := os.RemoveAll(plotDir); err != nil {
		return Images{}, pl.WrapError(err, "failed to clear %s", plotDir)
	}
	if err := os.MkdirAll(plotDir, 0o755); err != nil {
		return Images{}, pl.WrapError(err, "failed to create %s", plotDir)
	}

	shown := results
	if len(shown) > maxLines {
		shown = shown[:maxLines]
	}
	buckets := perTick(shown, func(m data.TickMetrics) float64 { return float64(m.Buckets) })
	occupancy := perTick(shown, func(m data.TickMetrics) float64 { return m.AverageOccupancy })
	attackers := perTick(shown, func(m data.TickMetrics) float64 { return float64(m.RemainingAttackers) })

	var images Images
	var err error
	if images.Buckets, err = createLinePlot(plotDir, "buckets", buckets, "Number of Buckets", "Tick", "Buckets"); err != nil {
		return Images{}, pl.WrapError(err, "failed to create bucket plot")
	}
	if images.Occupancy, err = createLinePlot(plotDir, "occupancy", occupancy, "Average Bucket Occupancy", "Tick", "Users per bucket"); err != nil {
		return Images{}, pl.WrapError(err, "failed to create occupancy plot")
	}
	if images.Attackers, err = createLinePlot(plotDir, "attackers", attackers, "Remaining Attackers", "Tick", "Attackers"); err != nil {
		return Images{}, pl.WrapError(err, "failed to create attacker plot")
	}

	durations := make([]float64, len(results))
	for i, r := range results {
		durations[i] = float64(r.Last().Tick)
	}
	if images.Duration, err = createHistogramPlot(plotDir, "duration", computeHistogram(durations, numBuckets), "Ticks per Run", "Ticks", "Frequency (# of runs)"); err != nil {
		return Images{}, pl.WrapError(err, "failed to create duration histogram")
	}
	return images, nil
}

func perTick(results []*data.Result, value func(data.TickMetrics) float64) []series {
	ret := make([]series, 0, len(results))
	for _, r := range results {
		if len(r.Ticks) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(r.Ticks))
		for j, m := range r.Ticks {
			xys[j].X = float64(m.Tick)
			xys[j].Y = value(m)
		}
		ret = append(ret, series{name: fmt.Sprintf("seed %d", r.P.Seed), xys: xys})
	}
	return ret
}
