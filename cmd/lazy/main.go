package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lazyweave/internal/cli"
)

// main captures the process context once and hands it to the CLI; nothing
// below reads the environment or working directory directly.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}

	result, err := cli.Run(ctx, os.Args[1:], cli.Env{
		WorkDir: wd,
		Environ: os.Environ(),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	if err != nil && err.Error() != "" {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(result.ExitCode)
}
