// Package notify formats the regression report sent after a build.
package notify

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/user/test-stability-go/internal/models"
)

// RegressionReport lists the tests that regressed in one build.
type RegressionReport struct {
	BuildURL    string
	Author      string
	Recipients  []string
	Regressions []models.Regression
}

// Empty reports whether there is nothing to send.
func (r *RegressionReport) Empty() bool {
	return len(r.Regressions) == 0
}

// Write renders the report body to w. Nothing is written when no test regressed.
func (r *RegressionReport) Write(w io.Writer) error {
	if r.Empty() {
		return nil
	}

	var b strings.Builder
	b.WriteString("Subject: Regression Report\n")
	if len(r.Recipients) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(r.Recipients, ", "))
	}
	b.WriteString("\n")
	b.WriteString(r.BuildURL)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%d regression(s) found. Author: %s\n", len(r.Regressions), r.Author)
	for _, reg := range r.Regressions {
		fmt.Fprintf(&b, "  %s Failed %d times in the last %d runs. Flakiness: %d%%, Stability: %d%%,\n",
			reg.TestID, reg.Failed, reg.Runs, reg.Flakiness, reg.Stability)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write regression report: %w", err)
	}
	return nil
}

// RecipientList splits a comma separated recipient list and, when
// sendToCulprits is set, appends the culprit's address. Entries that are not
// addresses are skipped with a warning.
func RecipientList(recipients, culprit string, sendToCulprits bool) []string {
	candidates := strings.Split(recipients, ",")
	if sendToCulprits && culprit != "" {
		candidates = append(candidates, culprit)
	}

	var list []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		if !strings.Contains(c, "@") {
			log.Printf("Warning: skipping invalid recipient address %q", c)
			continue
		}
		seen[c] = true
		list = append(list, c)
	}
	return list
}
