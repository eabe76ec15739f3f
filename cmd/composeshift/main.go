// Command composeshift translates a compose descriptor into cluster
// manifests and creates or deletes them with the cluster CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/composeshift/internal/shell/cluster"
	"github.com/artpar/composeshift/internal/shell/journal"
	"github.com/artpar/composeshift/internal/shell/lifecycle"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitAuthError    = 2
	ExitClusterError = 3
	ExitJournalError = 4
	ExitInterrupted  = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, defaultDeps(), os.Args[1:])
}

// execute runs one command line and returns its exit code.
func execute(ctx context.Context, d deps, args []string) int {
	root := newRootCmd(d)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errWriter(d), "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var (
		unitErr  *lifecycle.UnitError
		cmdErr   *cluster.CommandError
		storeErr *journal.StoreError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, lifecycle.ErrAuthentication):
		return ExitAuthError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &unitErr), errors.As(err, &cmdErr):
		return ExitClusterError
	case errors.As(err, &storeErr):
		return ExitJournalError
	default:
		return ExitConfigError
	}
}

func errWriter(d deps) io.Writer {
	if d.stderr != nil {
		return d.stderr
	}
	return os.Stderr
}
