package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/classmodel/internal/cli"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

func main() {
	// The bundled demo domain is what the reflective backend can resolve;
	// index and pool configurations describe their own classes.
	rootCmd := cli.NewRootCommand(demo.Units())

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Errors already reported by a command arrive as ExitError.
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
