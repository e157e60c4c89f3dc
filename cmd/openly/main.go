// Package main is the entry point of the openly CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openlyhq/openly/internal/cli"
	"github.com/openlyhq/openly/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and returns the process exit code.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	err := root.ExecuteContext(ctx)

	var partial *cli.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return extractExitCode(err)
}

// extractExitCode maps a command error to a process exit code. A batch with
// failed items exits with cli.ExitCodePartialFailure; its failures were
// already rendered.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var partial *cli.PartialFailureError
	if errors.As(err, &partial) {
		return cli.ExitCodePartialFailure
	}
	return 1
}
