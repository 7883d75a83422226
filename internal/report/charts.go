package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	acceptedColor = color.RGBA{R: 26, G: 152, B: 80, A: 255}
	rejectedColor = color.RGBA{R: 215, G: 48, B: 39, A: 255}
)

// PlotVerdicts renders the grid as a scatter of accepted and rejected tiles,
// with row 0 at the top. The image format follows the extension of path.
func PlotVerdicts(path, sceneName string, rows []TileRow) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - tile verdicts", sceneName)
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row"

	accepted := make(plotter.XYs, 0, len(rows))
	rejected := make(plotter.XYs, 0, len(rows))
	for _, r := range rows {
		pt := plotter.XY{X: float64(r.Column), Y: -float64(r.Row)}
		if r.Accepted {
			accepted = append(accepted, pt)
		} else {
			rejected = append(rejected, pt)
		}
	}

	for _, series := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"accepted", accepted, acceptedColor},
		{"rejected", rejected, rejectedColor},
	} {
		if len(series.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(series.pts)
		if err != nil {
			return fmt.Errorf("failed to create %s scatter: %w", series.name, err)
		}
		s.GlyphStyle.Color = series.color
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(series.name, s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// ReasonsChart writes an HTML bar chart of tile counts per reason.
func ReasonsChart(path, sceneName string, counts map[string]int) error {
	reasons := SortedReasons(counts)
	data := make([]opts.BarData, 0, len(reasons))
	for _, r := range reasons {
		data = append(data, opts.BarData{Value: counts[r]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: sceneName + " tile reasons", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tile reasons", Subtitle: sceneName}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(reasons).
		AddSeries("tiles", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := bar.Render(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return file.Close()
}
