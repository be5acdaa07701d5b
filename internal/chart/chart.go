package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"log"

	"github.com/user/test-stability-go/internal/history"
	"github.com/user/test-stability-go/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultTitle is the title of the history graph.
const DefaultTitle = "Test Results History"

// barWidth is the share of a category slot covered by its bar.
const barWidth = 0.8

// Formats are the image formats Render accepts.
var Formats = []string{"png", "svg", "pdf"}

// seriesColor is used for points whose color is not in the status table.
var seriesColor = color.NRGBA{A: 255}

// NewHistoryPlot builds the column chart for a history: one bar per point,
// filled with the point's status color, above the axis for passing builds and
// below it for failing ones.
func NewHistoryPlot(chart models.HistoryChart, title string) (*plot.Plot, error) {
	if len(chart.Categories) != len(chart.Points) {
		return nil, fmt.Errorf("chart has %d categories but %d points", len(chart.Categories), len(chart.Points))
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Pass/Fail"
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: -1, Label: "Fail"},
		{Value: 0, Label: "0"},
		{Value: 1, Label: "Pass"},
	})
	p.Add(plotter.NewGrid())

	for i, pt := range chart.Points {
		x := float64(i)
		bar, err := plotter.NewPolygon(plotter.XYs{
			{X: x - barWidth/2, Y: 0},
			{X: x + barWidth/2, Y: 0},
			{X: x + barWidth/2, Y: float64(pt.Y)},
			{X: x - barWidth/2, Y: float64(pt.Y)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bar for %s: %w", chart.Categories[i], err)
		}
		fill := color.Color(seriesColor)
		if style, ok := history.StyleForColor(pt.Color); ok {
			fill = style.RGBA
		} else {
			log.Printf("Warning: no style for color %q of %s, drawing it in the series color", pt.Color, chart.Categories[i])
		}
		bar.Color = fill
		bar.LineStyle.Color = fill
		bar.LineStyle.Width = vg.Points(0.5)
		p.Add(bar)
	}

	if len(chart.Categories) > 0 {
		p.NominalX(chart.Categories...)
	} else {
		p.X.Min, p.X.Max = 0, 1
	}
	p.X.Min = min(p.X.Min, -0.5)
	p.X.Max = max(p.X.Max, float64(len(chart.Categories))-0.5)
	p.Y.Min, p.Y.Max = -1, 1

	return p, nil
}

// Render draws chart in format (png, svg or pdf) and returns the encoded image.
func Render(chart models.HistoryChart, title, format string) ([]byte, error) {
	p, err := NewHistoryPlot(chart, title)
	if err != nil {
		return nil, err
	}
	return encode(p, format)
}

// RenderBase64 draws chart as a base64 encoded PNG, for inlining in HTML.
func RenderBase64(chart models.HistoryChart, title string) (string, error) {
	img, err := Render(chart, title, "png")
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(img), nil
}

func encode(p *plot.Plot, format string) ([]byte, error) {
	if !validFormat(format) {
		return nil, fmt.Errorf("unsupported chart format %q, want one of %v", format, Formats)
	}

	width := 6 * vg.Inch
	if n := len(p.X.Tick.Marker.Ticks(p.X.Min, p.X.Max)); n > 12 {
		width = vg.Length(n) * vg.Inch / 2
	}

	writer, err := p.WriterTo(width, 4*vg.Inch, format)
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}

	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func validFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
