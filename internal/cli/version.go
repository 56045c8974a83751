package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the tickcore release, overridden at build time with
// -ldflags "-X github.com/roach88/tickcore/internal/cli.Version=...".
var Version = "dev"

// VersionInfo is the payload of the version command.
type VersionInfo struct {
	Version string `json:"version"`
	Go      string `json:"go"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("tickcore %s (%s)", v.Version, v.Go)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tickcore version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(VersionInfo{
				Version: Version,
				Go:      runtime.Version(),
			})
		},
	}
}
