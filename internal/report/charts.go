package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lightskin/internal/grid"
)

// AssetsHost serves the echarts javascript for rendered pages.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridis stops, dark for opaque cells.
var fieldColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// FieldHeatmapChart builds an interactive heatmap of f. Rows are drawn with
// y increasing upwards.
func FieldHeatmapChart(f *grid.Field, title, subtitle string) *charts.HeatMap {
	g := f.Geometry()
	xs := make([]string, g.CellsX)
	for i := range xs {
		xs[i] = strconv.FormatFloat(g.CellCenter(i, 0).X, 'g', 4, 64)
	}
	ys := make([]string, g.CellsY)
	for j := range ys {
		ys[j] = strconv.FormatFloat(g.CellCenter(0, j).Y, 'g', 4, 64)
	}

	data := make([]opts.HeatMapData, 0, g.Cells())
	for idx, v := range f.Values() {
		i, j := g.Coords(idx)
		var z interface{} = v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			z = "-"
		}
		data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, z}})
	}

	lo, hi := ValueRange(f)
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "720px", Height: "720px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y", Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: fieldColors},
		}),
	)
	hm.SetXAxis(xs).AddSeries("translucency", data)
	return hm
}

// RenderFieldHeatmap writes a standalone HTML heatmap of f to w.
func RenderFieldHeatmap(w io.Writer, f *grid.Field, title string) error {
	lo, hi := f.Range()
	subtitle := fmt.Sprintf("%s range=[%.3g, %.3g]", f.Geometry(), lo, hi)
	if err := FieldHeatmapChart(f, title, subtitle).Render(w); err != nil {
		return fmt.Errorf("render heatmap chart: %w", err)
	}
	return nil
}

// Convergence records how far an iterative engine moves the field in each
// round, as the RMS change of cell transmission.
type Convergence struct {
	Engine  string
	Changes []float64

	prev []float64
}

func NewConvergence(engine string) *Convergence {
	return &Convergence{Engine: engine}
}

// Observe is a round callback. Every engine starts from full transmission.
func (c *Convergence) Observe(round int, values []float64) {
	if len(c.prev) != len(values) {
		c.prev = make([]float64, len(values))
		for i := range c.prev {
			c.prev[i] = 1
		}
	}
	change := 0.0
	if len(values) > 0 {
		change = floats.Distance(values, c.prev, 2) / math.Sqrt(float64(len(values)))
	}
	c.Changes = append(c.Changes, change)
	copy(c.prev, values)
}

// ConvergenceChart plots the per-round change of each run.
func ConvergenceChart(runs []*Convergence) *charts.Line {
	rounds := 0
	for _, run := range runs {
		rounds = max(rounds, len(run.Changes))
	}
	xs := make([]int, rounds)
	for i := range xs {
		xs[i] = i + 1
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Convergence", Width: "900px", Height: "500px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Convergence", Subtitle: "RMS change per round"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "change", Type: "log"}),
	)
	line.SetXAxis(xs)
	for _, run := range runs {
		data := make([]opts.LineData, len(run.Changes))
		for i, v := range run.Changes {
			// a log axis cannot show exact convergence
			data[i] = opts.LineData{Value: math.Max(v, 1e-12)}
		}
		line.AddSeries(run.Engine, data)
	}
	return line
}

// RenderConvergence writes a standalone HTML convergence chart to w.
func RenderConvergence(w io.Writer, runs []*Convergence) error {
	if err := ConvergenceChart(runs).Render(w); err != nil {
		return fmt.Errorf("render convergence chart: %w", err)
	}
	return nil
}

// RenderPage writes several charts as one HTML page.
func RenderPage(w io.Writer, title string, charters ...components.Charter) error {
	page := components.NewPage()
	page.SetPageTitle(title)
	page.SetAssetsHost(AssetsHost)
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(charters...)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
