package collector

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/user/test-stability-go/internal/config"
	"github.com/user/test-stability-go/internal/history"
	"github.com/user/test-stability-go/internal/junit"
	"github.com/user/test-stability-go/internal/models"
	"github.com/user/test-stability-go/internal/stability"
)

// ToolVersion is stored in the cache metadata.
const ToolVersion = "0.1.0-go"

// StabilityCollector records build results for one job and keeps them in a cache
// file below WorkDir.
type StabilityCollector struct {
	WorkDir string
	Job     string
	Config  config.Config
	Data    models.CollectedData
}

// NewStabilityCollector creates a collector for job with an empty history.
// Call LoadCache (or Collect) to pick up previously recorded builds.
func NewStabilityCollector(workDir, job string, cfg config.Config) (*StabilityCollector, error) {
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for work dir: %w", err)
	}
	if job == "" {
		return nil, fmt.Errorf("job name must not be empty")
	}
	if filepath.Base(job) != job {
		return nil, fmt.Errorf("job name %q must not contain path separators", job)
	}

	return &StabilityCollector{
		WorkDir: absWorkDir,
		Job:     job,
		Config:  cfg,
		Data:    newCollectedData(job, cfg.MaxHistoryLength),
	}, nil
}

func newCollectedData(job string, maxHistory int) models.CollectedData {
	return models.CollectedData{
		Metadata: models.Metadata{
			Job:         job,
			MaxHistory:  maxHistory,
			ToolVersion: ToolVersion,
		},
		Tests: make(map[string]*stability.TestHistory),
	}
}

// cachePath returns the path to the cache file of the job.
func (sc *StabilityCollector) cachePath() string {
	cacheDir := filepath.Join(sc.WorkDir, ".stability", "cache")
	return filepath.Join(cacheDir, sc.Job+".zip.gob")
}

// CacheExists checks if a cache file exists for the job.
func (sc *StabilityCollector) CacheExists() bool {
	_, err := os.Stat(sc.cachePath())
	return !os.IsNotExist(err)
}

// SaveCache saves the collected data to a gob-encoded, zip-compressed file.
func (sc *StabilityCollector) SaveCache() error {
	cacheFile := sc.cachePath()
	if err := os.MkdirAll(filepath.Dir(cacheFile), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", filepath.Dir(cacheFile), err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sc.Data); err != nil {
		return fmt.Errorf("failed to gob-encode data: %w", err)
	}

	zipFile, err := os.Create(cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create zip cache file %s: %w", cacheFile, err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	dataWriter, err := zipWriter.Create("data.gob")
	if err != nil {
		return fmt.Errorf("failed to create data.gob entry in zip: %w", err)
	}
	if _, err := dataWriter.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write gob data to zip entry: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	fmt.Printf("History cached to %s\n", cacheFile)
	return nil
}

// LoadCache loads collected data from a gob-encoded, zip-compressed file.
func (sc *StabilityCollector) LoadCache() error {
	cacheFile := sc.cachePath()
	zipReader, err := zip.OpenReader(cacheFile)
	if err != nil {
		return fmt.Errorf("failed to open zip cache file %s: %w", cacheFile, err)
	}
	defer zipReader.Close()

	if len(zipReader.File) == 0 || zipReader.File[0].Name != "data.gob" {
		return fmt.Errorf("invalid cache file format: data.gob not found")
	}

	dataFile, err := zipReader.File[0].Open()
	if err != nil {
		return fmt.Errorf("failed to open data.gob from zip: %w", err)
	}
	defer dataFile.Close()

	var data models.CollectedData
	if err := gob.NewDecoder(dataFile).Decode(&data); err != nil {
		return fmt.Errorf("failed to gob-decode data: %w", err)
	}
	if data.Tests == nil {
		data.Tests = make(map[string]*stability.TestHistory)
	}
	sc.Data = data
	return nil
}

// ClearCache removes the cache file of the job and resets the in-memory history.
func (sc *StabilityCollector) ClearCache() error {
	cacheFile := sc.cachePath()
	err := os.Remove(cacheFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file %s: %w", cacheFile, err)
	}
	if err == nil {
		fmt.Printf("Cache file %s removed successfully.\n", cacheFile)
	}
	sc.Data = newCollectedData(sc.Job, sc.Config.MaxHistoryLength)
	return nil
}

// Load picks up the cached history if there is one. A missing cache is not an error.
func (sc *StabilityCollector) Load() error {
	if !sc.CacheExists() {
		return nil
	}
	if err := sc.LoadCache(); err != nil {
		return err
	}
	if sc.Data.Metadata.Job != sc.Job {
		return fmt.Errorf("cache file %s belongs to job %q", sc.cachePath(), sc.Data.Metadata.Job)
	}
	sc.resize()
	return nil
}

// resize applies the configured max history length to every cached history.
// Shrinking drops the oldest results.
func (sc *StabilityCollector) resize() {
	maxHistory := sc.Config.MaxHistoryLength
	if sc.Data.Metadata.MaxHistory != maxHistory {
		log.Printf("Warning: max history length changed from %d to %d, resizing cached histories",
			sc.Data.Metadata.MaxHistory, maxHistory)
	}
	for _, h := range sc.Data.Tests {
		if h.Results != nil {
			h.Results.Resize(maxHistory)
		}
	}
	sc.Data.Metadata.MaxHistory = maxHistory
}

// Collect loads the cached history, records the results of one build and saves the cache.
func (sc *StabilityCollector) Collect(buildNumber int, suites []junit.Suite) error {
	if err := sc.Load(); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := sc.Record(buildNumber, suites); err != nil {
		return err
	}
	if err := sc.SaveCache(); err != nil {
		return fmt.Errorf("failed to save history to cache: %w", err)
	}
	return nil
}

// Record adds the results of build buildNumber to the in-memory history.
// Suites are keyed by name, cases by "suite/classname.name"; a suite's cases
// become its children. Filtered tests are hidden instead of recorded and
// skipped cases leave their history unchanged. Every id gets at most one
// result per build: a suite or case reported more than once (for example a
// suite split over several report files) failed if any occurrence failed.
func (sc *StabilityCollector) Record(buildNumber int, suites []junit.Suite) error {
	if buildNumber <= 0 {
		return fmt.Errorf("build number must be positive, got %d", buildNumber)
	}
	if buildNumber <= sc.Data.Metadata.LastBuild {
		return fmt.Errorf("build %d already recorded (last recorded build is %d)", buildNumber, sc.Data.Metadata.LastBuild)
	}

	for _, suite := range sc.mergeSuites(suites) {
		suiteHistory := sc.historyFor(suite.name, suite.name)

		for _, c := range suite.cases {
			caseHistory := sc.historyFor(c.id, c.name)
			caseHistory.Publish = true
			addChild(suiteHistory, c.id)

			switch c.outcome {
			case junit.CasePassed:
				if last, ok := caseHistory.Results.Last(); !ok || last.Passed {
					caseHistory.StackTrace = ""
				}
				// A fixed case keeps the trace of the failure it recovered from.
				caseHistory.Results.Add(buildNumber, true)
			case junit.CaseFailed:
				caseHistory.StackTrace = c.stackTrace
				caseHistory.Results.Add(buildNumber, false)
			case junit.CaseSkipped:
			}
		}

		suiteHistory.Results.Add(buildNumber, suite.passed)
	}

	sc.Data.Metadata.LastBuild = buildNumber
	sc.Data.Metadata.DateCollected = time.Now().UTC()
	return nil
}

type buildSuite struct {
	name   string
	passed bool
	cases  []*buildCase
}

type buildCase struct {
	id         string
	name       string
	outcome    junit.CaseOutcome
	stackTrace string
}

// mergeSuites folds the suites and cases of one build into one entry per id,
// in order of first appearance, and hides filtered tests.
func (sc *StabilityCollector) mergeSuites(suites []junit.Suite) []*buildSuite {
	var merged []*buildSuite
	byName := make(map[string]*buildSuite)
	cases := make(map[string]*buildCase)

	for _, suite := range suites {
		if sc.Config.IsFiltered(suite.Name) {
			sc.hide(suite.Name)
			continue
		}
		bs, ok := byName[suite.Name]
		if !ok {
			bs = &buildSuite{name: suite.Name, passed: true}
			byName[suite.Name] = bs
			merged = append(merged, bs)
		}
		bs.passed = bs.passed && suite.Passed()

		for _, c := range suite.Cases {
			if sc.Config.IsFiltered(c.Name) {
				sc.hide(c.Name)
				continue
			}
			id := CaseID(suite.Name, c)
			bc, ok := cases[id]
			if !ok {
				bc = &buildCase{id: id, name: c.Name, outcome: c.Outcome, stackTrace: c.StackTrace}
				cases[id] = bc
				bs.cases = append(bs.cases, bc)
				continue
			}
			bc.outcome, bc.stackTrace = mergeOutcome(bc.outcome, bc.stackTrace, c)
		}
	}
	return merged
}

// mergeOutcome combines two runs of the same case: a failure beats a pass,
// which beats a skip. The first failure's trace is kept.
func mergeOutcome(outcome junit.CaseOutcome, trace string, c junit.Case) (junit.CaseOutcome, string) {
	switch {
	case outcome == junit.CaseFailed:
		return outcome, trace
	case c.Outcome == junit.CaseFailed:
		return c.Outcome, c.StackTrace
	case c.Outcome == junit.CasePassed:
		return junit.CasePassed, ""
	}
	return outcome, trace
}

// CaseID is the history key of a test case.
func CaseID(suiteName string, c junit.Case) string {
	if c.ClassName == "" {
		return suiteName + "/" + c.Name
	}
	return suiteName + "/" + c.ClassName + "." + c.Name
}

func (sc *StabilityCollector) historyFor(id, name string) *stability.TestHistory {
	h, ok := sc.Data.Tests[id]
	if !ok || h.Results == nil {
		h = &stability.TestHistory{Name: name, Results: stability.NewCircularHistory(sc.Config.MaxHistoryLength)}
		sc.Data.Tests[id] = h
	}
	h.Name = name
	return h
}

func addChild(parent *stability.TestHistory, id string) {
	for _, c := range parent.Children {
		if c == id {
			return
		}
	}
	parent.Children = append(parent.Children, id)
}

func (sc *StabilityCollector) hide(name string) {
	for _, h := range sc.Data.HiddenTests {
		if h == name {
			return
		}
	}
	sc.Data.HiddenTests = append(sc.Data.HiddenTests, name)
}

// TestIDs returns the ids of all recorded tests, sorted.
func (sc *StabilityCollector) TestIDs() []string {
	ids := make([]string, 0, len(sc.Data.Tests))
	for id := range sc.Data.Tests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Regressions lists the publishable tests whose latest result regressed, sorted by id.
func (sc *StabilityCollector) Regressions() []models.Regression {
	var regressions []models.Regression
	for _, id := range sc.TestIDs() {
		h := sc.Data.Tests[id]
		if !h.Publish || h.Results == nil || !h.Results.IsMostRecentRegressed() {
			continue
		}
		regressions = append(regressions, models.Regression{
			TestID:    id,
			Failed:    h.Results.Failed(),
			Runs:      h.Results.Size(),
			Flakiness: h.Results.Flakiness(),
			Stability: h.Results.Stability(),
		})
	}
	return regressions
}

// Classified returns the chart records of a test's history.
func (sc *StabilityCollector) Classified(testID string) ([]models.RawBuildResult, error) {
	h, ok := sc.Data.Tests[testID]
	if !ok {
		return nil, fmt.Errorf("no history recorded for test %q in job %q", testID, sc.Job)
	}
	return history.Classify(h.Results.Results()), nil
}

// ReportData gathers everything a report needs for testID.
func (sc *StabilityCollector) ReportData(testID, pageURL string) (*models.ReportData, error) {
	h, ok := sc.Data.Tests[testID]
	if !ok {
		return nil, fmt.Errorf("no history recorded for test %q in job %q", testID, sc.Job)
	}

	chartData, err := json.Marshal(history.Classify(h.Results.Results()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chart data: %w", err)
	}

	data := &models.ReportData{
		Job:              sc.Job,
		TestID:           testID,
		TestName:         h.Name,
		Description:      stability.Description(h.Results),
		StackTrace:       h.StackTrace,
		LastBuild:        sc.Data.Metadata.LastBuild,
		Total:            h.Results.Size(),
		Failed:           h.Results.Failed(),
		Flakiness:        h.Results.Flakiness(),
		Stability:        h.Results.Stability(),
		FlakiestChild:    models.ChildSummary{Name: "No flaky tests", Value: -1},
		LeastStableChild: models.ChildSummary{Name: "No unstable tests", Value: -1},
		Children:         append([]string(nil), h.Children...),
		HiddenTests:      append([]string(nil), sc.Data.HiddenTests...),
		PageURL:          pageURL,
		ChartData:        string(chartData),
	}
	if id, f, ok := stability.FlakiestChild(h, sc.Data.Tests); ok {
		data.FlakiestChild = models.ChildSummary{Name: sc.Data.Tests[id].Name, Value: f}
	}
	if id, s, ok := stability.LeastStableChild(h, sc.Data.Tests); ok {
		data.LeastStableChild = models.ChildSummary{Name: sc.Data.Tests[id].Name, Value: s}
	}
	return data, nil
}
