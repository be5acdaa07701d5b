package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/test-stability-go/internal/chart"
	"github.com/user/test-stability-go/internal/comments"
	"github.com/user/test-stability-go/internal/history"
	"github.com/user/test-stability-go/internal/models"
)

//go:embed templates/report.html.tmpl
var reportTemplate string

// ReportAdapter defines the interface for generating different report formats.
type ReportAdapter interface {
	PrepareData(data *models.ReportData) error
	Write(outputFilePath string) error
}

// Formats lists every format NewReportAdapter understands.
var Formats = append([]string{"html", "json"}, chart.Formats...)

// NewReportAdapter returns the adapter for format. shortname enables the
// comment widget of HTML reports.
func NewReportAdapter(format, shortname string) (ReportAdapter, error) {
	switch format {
	case "html":
		return &HTMLReportAdapter{Shortname: shortname}, nil
	case "json":
		return &JSONReportAdapter{}, nil
	}
	for _, f := range chart.Formats {
		if f == format {
			return &ImageReportAdapter{Format: format}, nil
		}
	}
	return nil, fmt.Errorf("invalid report format '%s'. Must be one of %s", format, strings.Join(Formats, ", "))
}

func writeFile(outputFilePath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(outputFilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for report file %s: %w", outputFilePath, err)
	}
	return os.WriteFile(outputFilePath, content, 0644)
}

// --- JSON Report Adapter ---

type jsonReport struct {
	*models.ReportData
	Categories []string              `json:"categories"`
	Points     []models.PlottedPoint `json:"points"`
}

// JSONReportAdapter writes the test statistics together with the chart sequences.
type JSONReportAdapter struct {
	reportData []byte
}

// PrepareData transforms the chart data and marshals the report.
func (jra *JSONReportAdapter) PrepareData(data *models.ReportData) error {
	records, err := history.ParseRecords([]byte(data.ChartData))
	if err != nil {
		return fmt.Errorf("failed to read chart data of %s: %w", data.TestID, err)
	}
	hc, err := history.Transform(records)
	if err != nil {
		return fmt.Errorf("failed to transform chart data of %s: %w", data.TestID, err)
	}

	jsonData, err := json.MarshalIndent(jsonReport{ReportData: data, Categories: hc.Categories, Points: hc.Points}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data to JSON: %w", err)
	}
	jra.reportData = jsonData
	return nil
}

// Write saves the JSON report data to the specified output file.
func (jra *JSONReportAdapter) Write(outputFilePath string) error {
	return writeFile(outputFilePath, jra.reportData)
}

// --- HTML Report Adapter ---

// HTMLReportAdapter renders a single page report for one test. It is the
// history.Sink of its own chart data.
type HTMLReportAdapter struct {
	Shortname string

	chart      models.HistoryChart
	chartImage string
	diagnostic string
	reportBuf  bytes.Buffer
}

type chartRow struct {
	Category string
	Name     string
	Color    template.CSS
}

type htmlView struct {
	Data       *models.ReportData
	Rows       []chartRow
	ChartJSON  template.JS
	ChartImage string
	Diagnostic string
	Comments   *comments.Widget
}

var funcMap = template.FuncMap{
	"Percent": func(v int) string {
		if v < 0 {
			return "n/a"
		}
		return fmt.Sprintf("%d%%", v)
	},
	"FilterList": func(names []string) string {
		return "[" + strings.Join(names, ", ") + "]"
	},
}

var pageTemplate = template.Must(template.New("report.html.tmpl").Funcs(funcMap).Parse(reportTemplate))

// RenderChart keeps the chart and draws its PNG.
func (hra *HTMLReportAdapter) RenderChart(hc models.HistoryChart) error {
	img, err := chart.RenderBase64(hc, chart.DefaultTitle)
	if err != nil {
		return fmt.Errorf("failed to render chart image: %w", err)
	}
	hra.chart = hc
	hra.chartImage = img
	return nil
}

// RenderFailure shows an empty chart and records cause as the diagnostic.
func (hra *HTMLReportAdapter) RenderFailure(cause error) error {
	hra.diagnostic = cause.Error()
	hra.chart = emptyChart()
	img, err := chart.RenderBase64(hra.chart, chart.DefaultTitle)
	if err != nil {
		return fmt.Errorf("failed to render empty chart image: %w", err)
	}
	hra.chartImage = img
	return nil
}

// PrepareData charts the history and executes the page template. Chart data
// that cannot be transformed does not fail the report; the page shows the
// reason instead.
func (hra *HTMLReportAdapter) PrepareData(data *models.ReportData) error {
	hra.diagnostic = ""
	if err := history.Render([]byte(data.ChartData), hra); err != nil {
		if hra.diagnostic == "" {
			return fmt.Errorf("failed to render chart of %s: %w", data.TestID, err)
		}
		log.Printf("Warning: chart data of %s could not be charted: %v", data.TestID, err)
	}

	chartJSON, err := json.Marshal(hra.chart)
	if err != nil {
		return fmt.Errorf("failed to marshal chart data: %w", err)
	}

	view := htmlView{
		Data:       data,
		Rows:       make([]chartRow, len(hra.chart.Points)),
		ChartJSON:  template.JS(chartJSON),
		ChartImage: hra.chartImage,
		Diagnostic: hra.diagnostic,
		Comments:   comments.NewWidget(hra.Shortname, data.PageURL, data.TestName),
	}
	for i, pt := range hra.chart.Points {
		// Colors come from the status table, never from the payload.
		color := ""
		if style, ok := history.StyleForColor(pt.Color); ok {
			color = style.Color
		}
		view.Rows[i] = chartRow{Category: hra.chart.Categories[i], Name: pt.Name, Color: template.CSS(color)}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return fmt.Errorf("failed to execute HTML template: %w", err)
	}
	hra.reportBuf = buf
	return nil
}

// Write saves the HTML report data to the specified output file.
func (hra *HTMLReportAdapter) Write(outputFilePath string) error {
	if hra.reportBuf.Len() == 0 {
		return errors.New("no HTML report prepared")
	}
	return writeFile(outputFilePath, hra.reportBuf.Bytes())
}

// --- Image Report Adapter ---

// ImageReportAdapter writes only the history chart, as png, svg or pdf.
type ImageReportAdapter struct {
	Format string

	image []byte
}

// RenderChart draws hc in the adapter's format.
func (ira *ImageReportAdapter) RenderChart(hc models.HistoryChart) error {
	img, err := chart.Render(hc, chart.DefaultTitle, ira.Format)
	if err != nil {
		return err
	}
	ira.image = img
	return nil
}

// RenderFailure draws an empty chart titled with cause.
func (ira *ImageReportAdapter) RenderFailure(cause error) error {
	img, err := chart.Render(emptyChart(), chart.DefaultTitle+": "+cause.Error(), ira.Format)
	if err != nil {
		return err
	}
	ira.image = img
	return nil
}

// PrepareData charts the history of data.
func (ira *ImageReportAdapter) PrepareData(data *models.ReportData) error {
	ira.image = nil
	if err := history.Render([]byte(data.ChartData), ira); err != nil {
		if ira.image == nil {
			return fmt.Errorf("failed to render %s chart of %s: %w", ira.Format, data.TestID, err)
		}
		log.Printf("Warning: chart data of %s could not be charted: %v", data.TestID, err)
	}
	return nil
}

// Write saves the image to the specified output file.
func (ira *ImageReportAdapter) Write(outputFilePath string) error {
	if ira.image == nil {
		return errors.New("no chart image prepared")
	}
	return writeFile(outputFilePath, ira.image)
}

func emptyChart() models.HistoryChart {
	return models.HistoryChart{Categories: []string{}, Points: []models.PlottedPoint{}}
}
