package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/test-stability-go/internal/collector"
	"github.com/user/test-stability-go/internal/config"
	"github.com/user/test-stability-go/internal/history"
	"github.com/user/test-stability-go/internal/junit"
	"github.com/user/test-stability-go/internal/notify"
	"github.com/user/test-stability-go/internal/report"
	"github.com/user/test-stability-go/internal/stability"
	"github.com/user/test-stability-go/internal/ui"
	"github.com/user/test-stability-go/pkg/gitutil"
)

var (
	// Used for flags.
	jobName              string
	workDir              string
	configPath           string
	buildNumber          int
	repoPath             string
	regressionReportPath string
	clearCache           bool
	outputFilePath       string
	pageURL              string

	rootCmd = &cobra.Command{
		Use:   "test-stability",
		Short: "Test stability tracks how reliably tests pass across builds.",
		Long: `A tool that records JUnit test results build after build and reports
the history, flakiness and stability of every suite and test case. Builds
that turn a passing test into a failing one are reported as regressions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	collectCmd = &cobra.Command{
		Use:   "collect [REPORT_GLOB...]",
		Short: "Records the JUnit results of one build.",
		Long: `Parses the JUnit XML reports matching REPORT_GLOB (relative to the work dir,
"**" allowed, default "**/TEST-*.xml") and appends their results to the cached
history of the job. Builds whose HEAD commit matches the configured skip rules
are not recorded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			col, err := collector.NewStabilityCollector(workDir, jobName, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize collector for job %s: %w", jobName, err)
			}

			if clearCache {
				fmt.Println("Clearing cache...")
				if err := col.ClearCache(); err != nil {
					return err
				}
			}

			if reason := skipReason(cfg.Skip); reason != "" {
				fmt.Printf("Skipping build #%d: %s\n", buildNumber, reason)
				return nil
			}

			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"**/TEST-*.xml"}
			}
			paths, err := junit.Expand(col.WorkDir, patterns)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no JUnit reports match %s in %s", strings.Join(patterns, " "), col.WorkDir)
			}

			fmt.Printf("Reading %d JUnit report(s) for build #%d of %s\n", len(paths), buildNumber, jobName)
			suites, err := junit.ParseFiles(paths)
			if err != nil {
				return fmt.Errorf("failed to read JUnit reports: %w", err)
			}

			if err := col.Collect(buildNumber, suites); err != nil {
				return fmt.Errorf("error during collection of build #%d: %w", buildNumber, err)
			}
			fmt.Printf("Recorded %d suite(s) for build #%d.\n", len(suites), buildNumber)

			if regressionReportPath == "" {
				return nil
			}
			return writeRegressionReport(col, cfg)
		},
	}

	reportCmd = &cobra.Command{
		Use:   "report [TEST_ID] [" + strings.Join(report.Formats, "|") + "]",
		Short: "Generates a report for one recorded test.",
		Long: `Generates a report in the specified format using the recorded history of
TEST_ID. Suites are identified by their name, test cases by
"<suite>/<classname>.<name>"; run "list" to see them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			testID, reportFormat := args[0], args[1]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			adapter, err := report.NewReportAdapter(reportFormat, cfg.Comments.Shortname)
			if err != nil {
				return err
			}

			if outputFilePath == "" {
				outputFilePath = fmt.Sprintf("stability-report.%s", reportFormat)
			}
			absOutputFilePath, err := filepath.Abs(outputFilePath)
			if err != nil {
				return fmt.Errorf("invalid output file path '%s': %w", outputFilePath, err)
			}

			col, err := loadCollector(cfg)
			if err != nil {
				return err
			}
			data, err := col.ReportData(testID, pageURL)
			if err != nil {
				return err
			}

			fmt.Println("Preparing report data...")
			if err := adapter.PrepareData(data); err != nil {
				return fmt.Errorf("failed to prepare %s report data: %w", reportFormat, err)
			}

			fmt.Printf("Writing report to: %s\n", absOutputFilePath)
			if err := adapter.Write(absOutputFilePath); err != nil {
				return fmt.Errorf("failed to write %s report to %s: %w", reportFormat, absOutputFilePath, err)
			}

			fmt.Printf("%s report generated successfully: %s\n", strings.ToUpper(reportFormat), absOutputFilePath)
			return nil
		},
	}

	showCmd = &cobra.Command{
		Use:   "show [TEST_ID]",
		Short: "Prints the build history of one recorded test.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			col, err := loadCollector(cfg)
			if err != nil {
				return err
			}
			return showHistory(cmd.OutOrStdout(), col, args[0], ui.ShouldUseColor())
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists every recorded suite and test case.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			col, err := loadCollector(cfg)
			if err != nil {
				return err
			}
			listTests(cmd.OutOrStdout(), col)
			return nil
		},
	}
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func loadCollector(cfg config.Config) (*collector.StabilityCollector, error) {
	col, err := collector.NewStabilityCollector(workDir, jobName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collector for job %s: %w", jobName, err)
	}
	if !col.CacheExists() {
		return nil, fmt.Errorf("no history recorded for job %s in %s; run collect first", jobName, col.WorkDir)
	}
	if err := col.Load(); err != nil {
		return nil, fmt.Errorf("failed to load history of job %s: %w", jobName, err)
	}
	return col, nil
}

// skipReason checks the HEAD commit of repoPath against the skip rules.
func skipReason(rules config.Skip) string {
	if !rules.Enabled() {
		return ""
	}
	change, err := gitutil.HeadChange(repoPath)
	if err != nil {
		fmt.Printf("Warning: could not read the HEAD commit of %s, recording the build: %v\n", repoPath, err)
		return ""
	}
	return change.SkipReason(rules.Keyword, rules.Committer)
}

func writeRegressionReport(col *collector.StabilityCollector, cfg config.Config) error {
	rr := notify.RegressionReport{
		BuildURL:    cfg.BuildURL,
		Author:      "unknown",
		Regressions: col.Regressions(),
	}
	culprit := ""
	if author, err := gitutil.HeadAuthor(repoPath); err != nil {
		fmt.Printf("Warning: could not determine the build author from %s: %v\n", repoPath, err)
	} else {
		rr.Author = author.String()
		culprit = author.Email
	}
	rr.Recipients = notify.RecipientList(cfg.Notify.Recipients, culprit, cfg.Notify.SendToCulprits)

	if rr.Empty() {
		fmt.Println("No regressions found.")
		return nil
	}
	if regressionReportPath == "-" {
		return rr.Write(os.Stdout)
	}

	f, err := os.Create(regressionReportPath)
	if err != nil {
		return fmt.Errorf("failed to create regression report %s: %w", regressionReportPath, err)
	}
	defer f.Close()
	if err := rr.Write(f); err != nil {
		return err
	}
	fmt.Printf("%d regression(s) written to %s\n", len(rr.Regressions), regressionReportPath)
	return nil
}

func showHistory(w io.Writer, col *collector.StabilityCollector, testID string, color bool) error {
	records, err := col.Classified(testID)
	if err != nil {
		return err
	}
	passed := 0
	for _, r := range records {
		if history.Status(r.Status).Passed() {
			passed++
		}
		fmt.Fprintf(w, "Build #%-6d %s\n", r.BuildNumber, ui.Status(r.Status, color))
	}
	fmt.Fprintf(w, "%d of %d build(s) passed. %s\n", passed, len(records),
		stability.Description(col.Data.Tests[testID].Results))
	return nil
}

func listTests(w io.Writer, col *collector.StabilityCollector) {
	for _, id := range col.TestIDs() {
		fmt.Fprintf(w, "%s\t%s\n", id, stability.Description(col.Data.Tests[id].Results))
	}
	if len(col.Data.HiddenTests) > 0 {
		fmt.Fprintf(w, "hidden: %s\n", strings.Join(col.Data.HiddenTests, ", "))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&jobName, "job", "j", "default", "Name of the job whose history is used")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", ".", "Directory holding the JUnit reports and the .stability cache")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or TOML configuration file")

	collectCmd.Flags().IntVarP(&buildNumber, "build", "b", 0, "Number of the build the reports belong to")
	collectCmd.Flags().StringVar(&repoPath, "repo", ".", "Git repository whose HEAD commit is checked against the skip rules and blamed in the regression report")
	collectCmd.Flags().StringVar(&regressionReportPath, "regression-report", "", "Write the regression report to this file (\"-\" for stdout)")
	collectCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Clears the existing history before collecting")
	_ = collectCmd.MarkFlagRequired("build")

	reportCmd.Flags().StringVarP(&outputFilePath, "output-file-path", "o", "", "Output file path for the report")
	reportCmd.Flags().StringVar(&pageURL, "page-url", "", "URL the report is published at, used to identify its comment thread")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
