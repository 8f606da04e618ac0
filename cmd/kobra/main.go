// Command kobra compiles and runs block graphs of model families.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kobra-dev/kobra/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own errors through the output formatter;
		// anything else (flag parsing, unknown commands) is printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
