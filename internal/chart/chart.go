// Package chart renders the catalog category distribution as a bar chart.
package chart

import (
	"io"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// Default image size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// CategoryChart builds a bar chart of counts, in the given order.
func CategoryChart(counts []catalog.CategoryCount) (*plot.Plot, error) {
	if len(counts) == 0 {
		return nil, errors.NewValueError("chart.CategoryChart", "no categories to plot")
	}

	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
		names[i] = c.Category
	}

	p := plot.New()
	p.Title.Text = "Plant Category Distribution"
	p.X.Label.Text = "Category"
	p.Y.Label.Text = "Number of Plants"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, errors.Wrap(err, "build bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4

	return p, nil
}

// Save writes the chart of counts to path. The format follows the file
// extension (png, svg, pdf...).
func Save(path string, counts []catalog.CategoryCount) error {
	p, err := CategoryChart(counts)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	log.GetLoggerWithName("chart").Info("Category chart saved",
		log.PathKey, path,
		"categories", len(counts),
	)
	return nil
}

// Write renders the chart of counts to w in format ("png", "svg"...).
func Write(w io.Writer, format string, counts []catalog.CategoryCount) error {
	p, err := CategoryChart(counts)
	if err != nil {
		return err
	}
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return errors.Wrapf(err, "chart format %s", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write chart")
	}
	return nil
}

// FormatOf returns the image format implied by path.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
