package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/core"
	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
	"github.com/roach88/tickcore/internal/loop"
)

// heartbeatFrames is how often the demo task wakes up.
const heartbeatFrames = 60

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames uint64 // overrides loop.frames from the config when set
}

// RunSummary is the output of the run command.
type RunSummary struct {
	Frames     uint64         `json:"frames"`
	Host       string         `json:"host"`
	Dispatches map[string]int `json:"dispatches"`
	Heartbeats int            `json:"heartbeats"`
}

func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ran %d frames on host %s\n", s.Frames, s.Host)
	for _, ch := range []dispatch.Channel{dispatch.FixedTick, dispatch.Tick, dispatch.PostTick} {
		fmt.Fprintf(&b, "  %-10s %d\n", ch.String(), s.Dispatches[ch.String()])
	}
	fmt.Fprintf(&b, "  heartbeats  %d", s.Heartbeats)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the real-time frame loop",
		Long: `Drive the real-time frame loop against a fresh core.

A counting listener is subscribed on every channel and a heartbeat task
wakes every 60 frames. The loop runs until --frames frames have passed,
or until interrupted when --frames is 0.

Examples:
  tickcore run --frames 120
  tickcore run --config ./tickcore.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Frames, "frames", 0, "stop after this many frames (0 = config value, or until interrupted)")

	return cmd
}

func runLoop(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger

	policy, err := opts.Config.Policy()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid recreate policy", err)
	}
	c, err := core.New(
		core.WithLogger(logger),
		core.WithHostName(opts.Config.Host.Name),
		core.WithPolicy(policy),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create core", err)
	}
	defer c.Shutdown()

	summary := RunSummary{Dispatches: make(map[string]int)}
	for _, ch := range []dispatch.Channel{dispatch.FixedTick, dispatch.Tick, dispatch.PostTick} {
		name := ch.String()
		c.On(ch).Subscribe(dispatch.NewListener("count:"+name, func(dispatch.Event) error {
			summary.Dispatches[name]++
			return nil
		}))
	}

	_, err = c.Start("heartbeat", func(yield func(coroutine.Wait) bool) {
		for yield(coroutine.Frames(heartbeatFrames)) {
			summary.Heartbeats++
			logger.Info("heartbeat", "beats", summary.Heartbeats)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start heartbeat", err)
	}

	cfg := opts.Config.LoopSettings()
	if opts.Frames > 0 {
		cfg.MaxFrames = opts.Frames
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid loop config", err)
	}

	l := loop.New(c, cfg, loop.WithLogger(logger))
	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "loop failed", err)
	}

	summary.Frames = l.Frames()
	if h, err := c.Host(); err == nil {
		summary.Host = h.String()
	}
	return formatter.Success(summary)
}
