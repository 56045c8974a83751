// Command tickcore drives and inspects the frame dispatch core.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tickcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
