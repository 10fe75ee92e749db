// Command vrtb runs valid/ready bench scenarios and inspects their traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vrtb/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vrtb:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
