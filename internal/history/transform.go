// Package history turns a test's build results into the category labels and
// colored points of the "Test Results History" chart.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/user/test-stability-go/internal/models"
	"github.com/user/test-stability-go/internal/stability"
)

var (
	// ErrUnknownStatus is returned for a status label outside Pass, Fixed, Fail and Regression.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrMalformedInput is returned when the chart payload or one of its records is unusable.
	ErrMalformedInput = errors.New("malformed input")
)

// rawRecord catches missing fields, which a plain RawBuildResult would zero.
type rawRecord struct {
	BuildNumber *json.RawMessage `json:"build_number"`
	Status      *string          `json:"status"`
}

// ParseRecords decodes the JSON array embedded in a report page. An empty or
// null payload is an empty history.
func ParseRecords(payload []byte) ([]models.RawBuildResult, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return []models.RawBuildResult{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	var raw []rawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after the record array", ErrMalformedInput)
	}

	records := make([]models.RawBuildResult, 0, len(raw))
	for i, r := range raw {
		if r.BuildNumber == nil {
			return nil, fmt.Errorf("%w: record %d has no build_number", ErrMalformedInput, i)
		}
		if r.Status == nil {
			return nil, fmt.Errorf("%w: record %d has no status", ErrMalformedInput, i)
		}
		// Atoi rejects quoted, fractional and non-numeric values.
		n, err := strconv.Atoi(string(*r.BuildNumber))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: record %d has invalid build_number %s", ErrMalformedInput, i, *r.BuildNumber)
		}
		records = append(records, models.RawBuildResult{BuildNumber: n, Status: *r.Status})
	}
	return records, nil
}

// DeriveFields computes the label, name, color and value of every record,
// keeping input order. An unknown status fails the whole call.
func DeriveFields(records []models.RawBuildResult) ([]models.DerivedPoint, error) {
	points := make([]models.DerivedPoint, 0, len(records))
	for i, r := range records {
		status, err := ParseStatus(r.Status)
		if err != nil {
			return nil, fmt.Errorf("record %d (build %d): %w", i, r.BuildNumber, err)
		}
		style, _ := status.Style()
		points = append(points, models.DerivedPoint{
			X: "Build #" + strconv.Itoa(r.BuildNumber),
			PlottedPoint: models.PlottedPoint{
				Name:  r.Status,
				Color: style.Color,
				Y:     style.Y,
			},
		})
	}
	return points, nil
}

// ExtractCategories splits derived points into x-axis labels and points
// without a label. The input is left untouched.
func ExtractCategories(points []models.DerivedPoint) ([]string, []models.PlottedPoint) {
	categories := make([]string, len(points))
	plotted := make([]models.PlottedPoint, len(points))
	for i, p := range points {
		categories[i] = p.X
		plotted[i] = p.PlottedPoint
	}
	return categories, plotted
}

// Transform runs DeriveFields and ExtractCategories.
func Transform(records []models.RawBuildResult) (models.HistoryChart, error) {
	points, err := DeriveFields(records)
	if err != nil {
		return models.HistoryChart{}, err
	}
	categories, plotted := ExtractCategories(points)
	return models.HistoryChart{Categories: categories, Points: plotted}, nil
}

// Classify labels a pass/fail history: the first build is Pass or Fail, later
// builds that flip from pass to fail are Regression and from fail to pass Fixed.
func Classify(results []stability.Result) []models.RawBuildResult {
	records := make([]models.RawBuildResult, 0, len(results))
	for i, r := range results {
		status := StatusFail
		if r.Passed {
			status = StatusPass
		}
		if i > 0 {
			prev := results[i-1].Passed
			switch {
			case prev && !r.Passed:
				status = StatusRegression
			case !prev && r.Passed:
				status = StatusFixed
			}
		}
		records = append(records, models.RawBuildResult{BuildNumber: r.BuildNumber, Status: string(status)})
	}
	return records
}

// Sink receives the result of a render.
type Sink interface {
	RenderChart(chart models.HistoryChart) error
	// RenderFailure is called instead of RenderChart when the payload cannot
	// be charted; it should show an empty chart with the cause.
	RenderFailure(cause error) error
}

// Render parses payload, transforms it and hands the chart to sink. On any
// parse or transform error sink.RenderFailure is called and the error returned.
func Render(payload []byte, sink Sink) error {
	records, err := ParseRecords(payload)
	if err != nil {
		return fail(sink, err)
	}
	chart, err := Transform(records)
	if err != nil {
		return fail(sink, err)
	}
	return sink.RenderChart(chart)
}

func fail(sink Sink, cause error) error {
	if err := sink.RenderFailure(cause); err != nil {
		return fmt.Errorf("failed to render failure %v: %w", cause, err)
	}
	return cause
}
