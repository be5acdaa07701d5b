package models

import (
	"time"

	"github.com/user/test-stability-go/internal/stability"
)

// RawBuildResult is one build's outcome for a test, as embedded in a report page.
type RawBuildResult struct {
	BuildNumber int    `json:"build_number"`
	Status      string `json:"status"` // Pass, Fixed, Fail or Regression
}

// PlottedPoint is one chart data point, aligned by index with a category label.
type PlottedPoint struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Y     int    `json:"y"`
}

// DerivedPoint is a plotted point still carrying its x-axis label.
type DerivedPoint struct {
	X string `json:"x"`
	PlottedPoint
}

// HistoryChart is the pair of parallel sequences a chart renderer consumes.
type HistoryChart struct {
	Categories []string       `json:"categories"`
	Points     []PlottedPoint `json:"points"`
}

// CollectedData is everything recorded for one job, as stored in the cache.
type CollectedData struct {
	Metadata    Metadata                          `json:"metadata"`
	Tests       map[string]*stability.TestHistory `json:"tests"`
	HiddenTests []string                          `json:"hidden_tests"`
}

// Metadata describes the job and the last recorded build.
type Metadata struct {
	Job           string    `json:"job"`
	MaxHistory    int       `json:"max_history"`
	LastBuild     int       `json:"last_build"`
	DateCollected time.Time `json:"date_collected"`
	ToolVersion   string    `json:"tool_version"`
}

// Regression is a test whose latest result failed right after a pass.
type Regression struct {
	TestID    string `json:"test_id"`
	Failed    int    `json:"failed"`
	Runs      int    `json:"runs"`
	Flakiness int    `json:"flakiness"`
	Stability int    `json:"stability"`
}

// ChildSummary names the most notable child of a suite.
type ChildSummary struct {
	Name  string `json:"name"`
	Value int    `json:"value"` // -1 when there is no child
}

// ReportData is the payload a report adapter renders for one test.
type ReportData struct {
	Job         string `json:"job"`
	TestID      string `json:"test_id"`
	TestName    string `json:"test_name"`
	Description string `json:"description"`
	StackTrace  string `json:"stack_trace,omitempty"`
	LastBuild   int    `json:"last_build"`
	Total       int    `json:"total"`
	Failed      int    `json:"failed"`
	Flakiness   int    `json:"flakiness"`
	Stability   int    `json:"stability"`

	FlakiestChild    ChildSummary `json:"flakiest_child"`
	LeastStableChild ChildSummary `json:"least_stable_child"`
	Children         []string     `json:"children,omitempty"`
	HiddenTests      []string     `json:"hidden_tests,omitempty"`

	PageURL   string `json:"page_url,omitempty"`
	// ChartData is the JSON array of RawBuildResult records for the history graph.
	ChartData string `json:"chart_data"`
}
