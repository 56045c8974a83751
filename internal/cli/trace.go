package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/harness"
	"github.com/roach88/tickcore/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Canonical bool   // print the golden snapshot bytes
	Kind      string // optional - filter to one entry kind
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Scenario string            `json:"scenario"`
	Pass     bool              `json:"pass"`
	Trace    []trace.Entry     `json:"trace"`
	Tasks    map[string]string `json:"tasks"`
	Hosts    int               `json:"hosts"`
	Errors   []string          `json:"errors,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Print the dispatch trace of a scenario",
		Long: `Run one scenario and print its dispatch trace.

Each entry shows the logical sequence number, the frame, the channel and
what ran: a listener, a task step, a host lifecycle change or an error.

Examples:
  tickcore trace ./testdata/scenarios/fixed_then_tick.yaml
  tickcore trace ./scenario.cue --kind task
  tickcore trace ./scenario.yaml --canonical > scenario.golden
  tickcore trace ./scenario.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print the canonical JSON snapshot used for golden files")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind (listener|task|lifecycle|error)")

	return cmd
}

func runTrace(opts *TraceOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Kind != "" && !validKind(opts.Kind) {
		msg := fmt.Sprintf("invalid kind %q: must be one of listener, task, lifecycle, error", opts.Kind)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, "failed to load scenario", err.Error())
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("Running scenario %s (%d frames)", scenario.Name, len(scenario.Frames))

	result, err := harness.Run(scenario, harnessOptions(opts.RootOptions)...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, "failed to run scenario", err.Error())
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Canonical {
		data, err := harness.NewSnapshot(scenario.Name, result).MarshalCanonical()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to marshal trace", err)
		}
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}

	entries := filterKind(result.Trace, opts.Kind)
	if formatter.JSON() {
		return formatter.Report(TraceResult{
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Trace:    entries,
			Tasks:    result.Tasks,
			Hosts:    result.Hosts,
			Errors:   result.Errors,
		}, nil)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	fmt.Fprintf(w, "%s\n\n", scenario.Description)
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no entries)")
	} else {
		fmt.Fprint(w, trace.FormatText(entries))
	}
	fmt.Fprintf(w, "\nHosts: %d\n", result.Hosts)
	if result.Pass {
		fmt.Fprintln(w, "Assertions: pass")
	} else {
		fmt.Fprintf(w, "Assertions: %d failed\n", len(result.Errors))
	}
	return nil
}

func validKind(kind string) bool {
	switch trace.Kind(kind) {
	case trace.KindListener, trace.KindTask, trace.KindLifecycle, trace.KindError:
		return true
	}
	return false
}

func filterKind(entries []trace.Entry, kind string) []trace.Entry {
	if kind == "" {
		return entries
	}
	out := make([]trace.Entry, 0, len(entries))
	for _, e := range entries {
		if string(e.Kind) == kind {
			out = append(out, e)
		}
	}
	return out
}
