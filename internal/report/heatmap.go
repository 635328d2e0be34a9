// Package report renders reconstructed fields and engine convergence as PNG
// plots and HTML charts.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/skin"
)

// PlotSize is the edge length of square heatmap images.
var PlotSize = 6 * vg.Inch

// fieldGrid adapts a Field to plotter.GridXYZ, one column per cell column.
type fieldGrid struct {
	f *grid.Field
}

func (g fieldGrid) Dims() (c, r int) {
	geom := g.f.Geometry()
	return geom.CellsX, geom.CellsY
}

func (g fieldGrid) Z(c, r int) float64 { return g.f.At(c, r) }
func (g fieldGrid) X(c int) float64    { return g.f.Geometry().CellCenter(c, 0).X }
func (g fieldGrid) Y(r int) float64    { return g.f.Geometry().CellCenter(0, r).Y }

// ValueRange returns the colour scale for f: [0, 1] widened to include any
// finite value outside it.
func ValueRange(f *grid.Field) (lo, hi float64) {
	lo, hi = f.Range()
	if math.IsNaN(lo) {
		return 0, 1
	}
	return math.Min(0, lo), math.Max(1, hi)
}

// HeatmapPlot builds a heatmap of f. When layout is set the emitters and
// sensors are drawn on top.
func HeatmapPlot(f *grid.Field, title string, layout *skin.Layout) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	h := plotter.NewHeatMap(fieldGrid{f}, palette.Heat(64, 1))
	h.Min, h.Max = ValueRange(f)
	h.NaN = color.Gray{Y: 128}
	p.Add(h)

	if layout != nil {
		for _, set := range []struct {
			name   string
			points []grid.Point
			shape  draw.GlyphDrawer
			color  color.Color
		}{
			{"emitters", layout.Emitters, draw.TriangleGlyph{}, color.RGBA{B: 200, A: 255}},
			{"sensors", layout.Sensors, draw.CircleGlyph{}, color.RGBA{G: 140, A: 255}},
		} {
			if len(set.points) == 0 {
				continue
			}
			xys := make(plotter.XYs, len(set.points))
			for i, pt := range set.points {
				xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
			}
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", set.name, err)
			}
			s.GlyphStyle.Shape = set.shape
			s.GlyphStyle.Color = set.color
			s.GlyphStyle.Radius = vg.Points(4)
			p.Add(s)
			p.Legend.Add(set.name, s)
		}
		p.Legend.Top = true
	}
	return p, nil
}

// WriteHeatmapPNG saves a heatmap of f to path. The image format follows the
// file extension.
func WriteHeatmapPNG(path string, f *grid.Field, title string, layout *skin.Layout) error {
	p, err := HeatmapPlot(f, title, layout)
	if err != nil {
		return err
	}
	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// HeatmapPNG writes a PNG heatmap of f to w.
func HeatmapPNG(w io.Writer, f *grid.Field, title string, layout *skin.Layout) error {
	p, err := HeatmapPlot(f, title, layout)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PlotSize, PlotSize, "png")
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
