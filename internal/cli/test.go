package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to a golden directory beside the scenarios directory
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run dispatch scenarios",
		Long: `Run scenario files (.yaml, .yml, .cue) through the harness.

Each scenario must pass its assertions. When a golden file exists for the
scenario its trace must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tickcore test ./testdata/scenarios
  tickcore test ./testdata/scenarios --filter "fixed_*"
  tickcore test ./testdata/scenarios --update
  tickcore test ./testdata/scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: <scenarios-dir>/../golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(scenariosDir)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("scenarios directory not found: %s", scenariosDir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if opts.GoldenDir == "" {
		opts.GoldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	w := cmd.OutOrStdout()
	for _, file := range files {
		r := runScenario(file, opts)
		result.Scenarios = append(result.Scenarios, r)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !formatter.JSON() {
			writeScenarioText(w, r)
		}
	}

	var failure *CLIError
	if result.Failed > 0 {
		failure = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if formatter.JSON() {
		if err := formatter.Report(result, failure); err != nil {
			return err
		}
	} else {
		if result.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return nil
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if failure == nil {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// findScenarioFiles walks dir for scenario files whose base name (without
// extension) matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !harness.IsScenarioFile(path) {
			return nil
		}
		if filter != "" {
			base := filepath.Base(path)
			name := strings.TrimSuffix(base, filepath.Ext(base))
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads, runs and golden-checks one scenario file.
func runScenario(file string, opts *TestOptions) ScenarioResult {
	r := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		r.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return r
	}
	r.Name = scenario.Name

	result, err := harness.Run(scenario, harnessOptions(opts.RootOptions)...)
	if err != nil {
		r.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return r
	}
	r.Errors = result.Errors

	data, err := harness.NewSnapshot(scenario.Name, result).MarshalCanonical()
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return r
	}

	goldenPath := filepath.Join(opts.GoldenDir, scenario.Name+".golden")
	if opts.Update {
		if err := writeGolden(goldenPath, data); err != nil {
			r.Errors = append(r.Errors, err.Error())
			return r
		}
		r.Golden = "updated"
		r.Pass = result.Pass
		return r
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.Golden = "missing"
	case err != nil:
		r.Errors = append(r.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return r
	case !bytes.Equal(want, data):
		r.Errors = append(r.Errors, "trace does not match golden file (run with --update to regenerate)")
		return r
	default:
		r.Golden = "match"
	}

	r.Pass = result.Pass
	return r
}

// harnessOptions routes harness diagnostics to the CLI logger in verbose mode.
func harnessOptions(opts *RootOptions) []harness.Option {
	if !opts.Verbose || opts.Logger == nil {
		return nil
	}
	return []harness.Option{harness.WithLogger(opts.Logger)}
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func writeScenarioText(w io.Writer, r ScenarioResult) {
	if r.Pass {
		suffix := ""
		if r.Golden == "updated" {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "✓ %s%s\n", r.Name, suffix)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
