// File: cmd/selharness/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/selharness/cmd"
	"github.com/xkilldash9x/selharness/internal/observability"
)

// osExit allows tests to observe the exit code.
var osExit = os.Exit

func main() {
	// Set up a context that listens for interrupt signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cmd.Execute)
	stop()
	observability.Sync()
	osExit(code)
}

// run maps the command outcome to a process exit code.
func run(ctx context.Context, execute func(context.Context) error) int {
	err := execute(ctx)
	if err == nil {
		return 0
	}
	var exitErr *cmd.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		// Interrupted; the child test process has already reported.
		return 130
	}
	return 1
}
