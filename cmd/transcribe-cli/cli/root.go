// Package cli is the transcribe-cli command tree: submit/status/watch
// over the core's HTTP surface, grounded on the teacher's
// internal/cli package but pointed at this core's API instead of
// Scriberr's.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, per spec.md §6.
const (
	ExitSuccess       = 0
	ExitUserError     = 1
	ExitInfraError    = 2
	ExitInternalError = 3
)

var rootCmd = &cobra.Command{
	Use:   "transcribe-cli",
	Short: "transcribe-cli — submit, poll, and auto-ingest jobs against the transcription core",
}

// Execute runs the root command, exiting with spec.md §6's exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(InitConfig)
}

// cliError carries an explicit exit code alongside its message so
// subcommands can distinguish user mistakes from infra/internal failures.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func userError(err error) error     { return &cliError{code: ExitUserError, err: err} }
func infraError(err error) error    { return &cliError{code: ExitInfraError, err: err} }
func internalError(err error) error { return &cliError{code: ExitInternalError, err: err} }

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return ExitInternalError
}
