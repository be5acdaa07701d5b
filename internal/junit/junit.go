// Package junit reads JUnit XML test reports.
package junit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// CaseOutcome is the result of one test case.
type CaseOutcome int

const (
	CasePassed CaseOutcome = iota
	CaseFailed
	CaseSkipped
)

// Case is one <testcase>.
type Case struct {
	ClassName  string
	Name       string
	Outcome    CaseOutcome
	StackTrace string
}

// Suite is one <testsuite> and its cases.
type Suite struct {
	Name  string
	Cases []Case
}

// Passed reports whether no case of the suite failed.
func (s Suite) Passed() bool {
	for _, c := range s.Cases {
		if c.Outcome == CaseFailed {
			return false
		}
	}
	return true
}

type xmlSuites struct {
	Suites []xmlSuite `xml:"testsuite"`
}

type xmlSuite struct {
	Name   string     `xml:"name,attr"`
	Cases  []xmlCase  `xml:"testcase"`
	Suites []xmlSuite `xml:"testsuite"`
}

type xmlCase struct {
	ClassName string      `xml:"classname,attr"`
	Name      string      `xml:"name,attr"`
	Failure   *xmlProblem `xml:"failure"`
	Error     *xmlProblem `xml:"error"`
	Skipped   *struct{}   `xml:"skipped"`
}

type xmlProblem struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// Parse reads a report whose root is either <testsuites> or a single <testsuite>.
// Nested suites are flattened in document order.
func Parse(r io.Reader) ([]Suite, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse report XML: %w", err)
	}

	var raw []xmlSuite
	switch root.XMLName.Local {
	case "testsuites":
		var suites xmlSuites
		if err := xml.Unmarshal(data, &suites); err != nil {
			return nil, fmt.Errorf("failed to parse testsuites: %w", err)
		}
		raw = suites.Suites
	case "testsuite":
		var suite xmlSuite
		if err := xml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("failed to parse testsuite: %w", err)
		}
		raw = []xmlSuite{suite}
	default:
		return nil, fmt.Errorf("unexpected root element <%s>, want <testsuites> or <testsuite>", root.XMLName.Local)
	}

	var suites []Suite
	var flatten func(list []xmlSuite)
	flatten = func(list []xmlSuite) {
		for _, x := range list {
			suite := Suite{Name: x.Name}
			for _, xc := range x.Cases {
				suite.Cases = append(suite.Cases, convertCase(xc))
			}
			suites = append(suites, suite)
			flatten(x.Suites)
		}
	}
	flatten(raw)
	return suites, nil
}

func convertCase(xc xmlCase) Case {
	c := Case{ClassName: xc.ClassName, Name: xc.Name, Outcome: CasePassed}
	switch {
	case xc.Failure != nil:
		c.Outcome = CaseFailed
		c.StackTrace = problemText(xc.Failure)
	case xc.Error != nil:
		c.Outcome = CaseFailed
		c.StackTrace = problemText(xc.Error)
	case xc.Skipped != nil:
		c.Outcome = CaseSkipped
	}
	return c
}

func problemText(p *xmlProblem) string {
	if p.Body != "" {
		return p.Body
	}
	return p.Message
}

// ParseFile parses the report at path.
func ParseFile(path string) ([]Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer f.Close()

	suites, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suites, nil
}

// ParseFiles parses reports concurrently and returns their suites in the
// order of paths.
func ParseFiles(paths []string) ([]Suite, error) {
	numFiles := len(paths)
	if numFiles == 0 {
		return nil, nil
	}

	numWorkers := runtime.NumCPU()
	if numFiles < numWorkers {
		numWorkers = numFiles
	}

	type result struct {
		index  int
		suites []Suite
		err    error
	}
	jobs := make(chan int, numFiles)
	results := make(chan result, numFiles)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				suites, err := ParseFile(paths[i])
				results <- result{index: i, suites: suites, err: err}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	perFile := make([][]Suite, numFiles)
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		perFile[r.index] = r.suites
	}
	if firstErr != nil {
		return nil, firstErr
	}

	var all []Suite
	for _, suites := range perFile {
		all = append(all, suites...)
	}
	return all, nil
}

// Expand resolves doublestar patterns (for example "**/TEST-*.xml") relative to
// root. Absolute patterns are split at their first wildcard and resolved from
// their own base directory. The result is sorted and free of duplicates.
func Expand(root string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	for _, pattern := range patterns {
		slashed := filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(slashed) {
			return nil, fmt.Errorf("invalid report pattern %q", pattern)
		}
		base, rel := root, slashed
		if filepath.IsAbs(pattern) {
			b, r := doublestar.SplitPattern(slashed)
			base, rel = filepath.FromSlash(b), r
		}
		matches, err := doublestar.Glob(os.DirFS(base), rel, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand report pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(filepath.Join(base, filepath.FromSlash(m)))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
