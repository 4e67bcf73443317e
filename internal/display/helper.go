package display

import (
	"fmt"
	"path/filepath"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type pair struct {
	key      float64
	count    float64
	interval float64
}

// series is one named line of a line plot.
type series struct {
	name string
	xys  plotter.XYs
}

func computeHistogram(values []float64, numBuckets int) []pair {
	numBuckets = utils.Max(numBuckets, 1)
	if len(values) == 0 {
		return make([]pair, 0)
	}
	xMin := utils.MinOver(values)
	xMax := utils.MaxOver(values)
	interval := (xMax - xMin) / float64(numBuckets)

	hist := make([]pair, numBuckets)
	for i := range hist {
		hist[i] = pair{key: xMin + float64(i)*interval, interval: interval}
	}
	for _, value := range values {
		i := numBuckets - 1
		if interval > 0 {
			i = utils.Min(int((value-xMin)/interval), numBuckets-1)
		}
		hist[i].count++
	}
	return hist
}

func createHistogramPlot(dir, file string, hist []pair, title, xLabel, yLabel string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.X.Label.Text = xLabel

	xLabels := make([]string, len(hist))
	counts := make([]float64, len(hist))
	for i, h := range hist {
		xLabels[i] = fmt.Sprintf("%.1f", h.key)
		counts[i] = h.count
	}

	plotWidth := 8 * vg.Inch
	barWidth := plotWidth / vg.Length(utils.Max(int(float64(len(hist))*1.2), 1))

	bars, err := plotter.NewBarChart(plotter.Values(counts), barWidth)
	if err != nil {
		return "", pl.WrapError(err, "failed to create bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = firstColor

	p.Add(bars)
	p.Legend.Add(fmt.Sprintf("(runs = %.0f)", utils.Sum(counts)), bars)
	p.Legend.Top = true
	p.NominalX(xLabels...)

	path := filepath.Join(dir, file+".png")
	if err = p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", pl.WrapError(err, "failed to save plot %s", path)
	}
	return path, nil
}

// createLinePlot returns an empty path when there is nothing to draw.
func createLinePlot(dir, file string, lines []series, title, xLabel, yLabel string) (string, error) {
	if len(lines) == 0 {
		return "", nil
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	args := make([]interface{}, 0, 2*len(lines))
	for _, l := range lines {
		args = append(args, l.name, l.xys)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return "", pl.WrapError(err, "failed to add line points")
	}

	path := filepath.Join(dir, file+".png")
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", pl.WrapError(err, "failed to save plot %s", path)
	}
	return path, nil
}
