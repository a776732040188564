package debugview

import (
	"io"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/clipgi/conetrace"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotProfile plots the accumulated opacity, occlusion and sampled level of a
// cone march against the travelled distance.
func PlotProfile(title string, samples []conetrace.Sample) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty cone profile")
	}
	alpha := make(plotter.XYs, len(samples))
	occlusion := make(plotter.XYs, len(samples))
	level := make(plotter.XYs, len(samples))
	maxLevel := 1.0
	for _, s := range samples {
		maxLevel = max(maxLevel, float64(s.Level))
	}
	for i, s := range samples {
		d := float64(s.Distance)
		alpha[i] = plotter.XY{X: d, Y: float64(s.Alpha)}
		occlusion[i] = plotter.XY{X: d, Y: float64(s.Occlusion)}
		level[i] = plotter.XY{X: d, Y: float64(s.Level) / maxLevel}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "distance"
	p.Y.Label.Text = "value"
	p.Y.Min, p.Y.Max = 0, 1
	for i, series := range []struct {
		name string
		xys  plotter.XYs
	}{
		{"alpha", alpha},
		{"occlusion", occlusion},
		{"level/max", level},
	} {
		line, err := plotter.NewLine(series.xys)
		if err != nil {
			return nil, errors.New("creating profile line").WithTag("series", series.name).Wrap(err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// WritePNG encodes p as a PNG image of the given size.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
