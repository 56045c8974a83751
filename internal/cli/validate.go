package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/harness"
)

// FileValidation is the validation outcome for one scenario file.
type FileValidation struct {
	File   string `json:"file"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Validate scenario files against the schema",
		Long: `Validate scenario files without running them.

Each file is decoded, checked against the CUE scenario schema and
checked for unresolved listener and task references. Schema errors
report the line and column when known.

Examples:
  tickcore validate ./testdata/scenarios/*.yaml
  tickcore validate ./scenario.cue --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := FileValidation{File: file, Valid: true}
		if err := harness.ValidateFile(file); err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			var se *harness.SchemaError
			if errors.As(err, &se) && se.Pos.IsValid() {
				fv.Line = se.Pos.Line()
				fv.Column = se.Pos.Column()
			}
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}

	if formatter.JSON() {
		var failure *CLIError
		if invalid > 0 {
			failure = &CLIError{
				Code:    ErrCodeInvalidFile,
				Message: fmt.Sprintf("%d of %d file(s) invalid", invalid, len(files)),
			}
		}
		if err := formatter.Report(result, failure); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s\n", fv.File)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n  %s\n", fv.File, fv.Error)
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d file(s) invalid", invalid, len(files)))
	}
	return nil
}
