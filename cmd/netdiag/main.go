package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// usageError marks an invalid invocation; usage goes to stderr.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "error: %v\n\n", ue.err)
		fmt.Fprint(stderr, cmd.UsageString())
		return exitFailure
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code == exitInterrupted {
			fmt.Fprintln(stderr, "interrupted: partial results were written to the log")
		} else {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFailure
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	g := &globalFlags{}
	rf := newRunFlags()

	root := &cobra.Command{
		Use:   "netdiag -t <target> [options]",
		Short: "Point-in-time network diagnostics for a single host",
		Long: `netdiag runs DNS lookups, TCP port checks, an ICMP latency sample and
HTTP/HTTPS fetches against one target, in that order, and writes every
result to a timestamped text log as it arrives.`,
		Example: `  # Default port set, log written to diag_example.com.log
  netdiag -t example.com

  # Selected ports, shorter timeout, nmap for the port stage
  netdiag -t 192.0.2.1 -p 22,443 -T 1 -n`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnostics(cmd, g, rf, stdout)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML file with default settings")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Write operational logs to stderr")
	rf.register(root.Flags())

	root.AddCommand(newCapabilitiesCmd(g, stdout))
	root.AddCommand(newServeCmd(g))
	return root
}
