// Command paramcontract checks parameter contract documents and validates HTTP
// requests against them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erraggy/paramcontract/cmd/paramcontract/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.NewRootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode reports err on stderr and maps it to the process exit status.
// ErrFailed has already been reported by the command itself.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if !errors.Is(err, commands.ErrFailed) {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}
