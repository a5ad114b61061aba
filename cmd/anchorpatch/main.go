// Command anchorpatch applies anchor-located text patch plans to documents.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/anchorpatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// ExitErrors were already reported by the command; argument and
		// flag errors were not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
