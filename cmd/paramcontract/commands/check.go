package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/internal/cliutil"
	"github.com/erraggy/paramcontract/pcerrors"
)

type checkOptions struct {
	format   string
	watch    bool
	debounce time.Duration
}

type checkIssue struct {
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Field     string `json:"field,omitempty"     yaml:"field,omitempty"`
	Message   string `json:"message"             yaml:"message"`
}

type checkReport struct {
	Files      []string     `json:"files"                yaml:"files"`
	Valid      bool         `json:"valid"                yaml:"valid"`
	Operations []string     `json:"operations,omitempty" yaml:"operations,omitempty"`
	Errors     []checkIssue `json:"errors,omitempty"     yaml:"errors,omitempty"`
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	o := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [flags] <file>...",
		Short: "Load contract documents and report every contract error",
		Long: `Load one or more contract documents as a single registry and report the
operations they declare, or every contract error found. Loading is all or
nothing: an operationId declared in two files is an error.

With --watch the check runs again whenever one of the files changes.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return ValidateOutputFormat(o.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			run := func() error {
				return runCheck(cmd.Context(), out, args, o.format, root)
			}
			if !o.watch {
				return run()
			}
			return watchAndCheck(cmd.Context(), out, args, o.debounce, root.logger, run)
		},
	}
	addFormatFlag(cmd, &o.format)
	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "re-run the check whenever a file changes")
	cmd.Flags().DurationVar(&o.debounce, "debounce", defaultDebounce, "quiet period before a change triggers a re-run")
	return cmd
}

func runCheck(ctx context.Context, w io.Writer, paths []string, format string, root *rootOptions) error {
	report := checkReport{Files: paths}

	reg, err := contract.LoadFiles(ctx, paths, root.loadOptions()...)
	if err != nil {
		issues := pcerrors.ContractErrors(err)
		if len(issues) == 0 {
			return err
		}
		for _, ce := range issues {
			report.Errors = append(report.Errors, checkIssue{Operation: ce.Operation, Field: ce.Field, Message: issueMessage(ce)})
		}
	} else {
		report.Valid = true
		report.Operations = reg.Operations()
		root.logger.Debug("check passed", "files", len(paths), "operations", reg.Len())
	}

	if format == FormatText {
		writeCheckText(w, report)
	} else if err := OutputStructured(w, report, format); err != nil {
		return err
	}
	if !report.Valid {
		return ErrFailed
	}
	return nil
}

func issueMessage(ce *pcerrors.ContractError) string {
	msg := ce.Message
	if ce.Cause != nil {
		if msg != "" {
			msg += ": "
		}
		msg += ce.Cause.Error()
	}
	return msg
}

func writeCheckText(w io.Writer, report checkReport) {
	files := strings.Join(report.Files, ", ")
	if report.Valid {
		cliutil.Writef(w, "%s: OK, %d operation(s)\n", files, len(report.Operations))
		for _, id := range report.Operations {
			cliutil.Writef(w, "  %s\n", id)
		}
		return
	}
	cliutil.Writef(w, "%s: %d contract error(s)\n", files, len(report.Errors))
	for _, issue := range report.Errors {
		var where []string
		if issue.Operation != "" {
			where = append(where, issue.Operation)
		}
		if issue.Field != "" {
			where = append(where, issue.Field)
		}
		if len(where) == 0 {
			cliutil.Writef(w, "  %s\n", issue.Message)
			continue
		}
		cliutil.Writef(w, "  %s: %s\n", strings.Join(where, " "), issue.Message)
	}
}

// watchAndCheck runs the check once and again after every change until ctx
// is cancelled. Failures are reported and do not stop the watch.
func watchAndCheck(ctx context.Context, w io.Writer, paths []string, debounce time.Duration, logger *slog.Logger, run func() error) error {
	watcher, err := watchFiles(paths, debounce)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	report := func() {
		if err := run(); err != nil && !errors.Is(err, ErrFailed) {
			cliutil.Writef(w, "Error: %v\n", err)
		}
	}

	report()
	cliutil.Writef(w, "watching %d file(s) for changes\n", len(paths))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Update:
			if err != nil {
				logger.Warn("watch error", "error", err)
				continue
			}
			logger.Debug("contracts changed, checking again")
			report()
		}
	}
}
