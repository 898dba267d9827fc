// Package cliutil provides output helpers for the paramcontract command.
package cliutil

import (
	"fmt"
	"io"
	"os"
)

// Writef writes formatted output to w. Reports are best effort: a failed write
// is noted on stderr and otherwise ignored.
func Writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}
