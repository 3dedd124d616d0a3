// Package cli provides command-line interface setup for labflow.
package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess   = 0
	ExitRunFailed = 1
	ExitError     = 2
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func runFailed(err error) error { return &exitError{code: ExitRunFailed, err: err} }

// ExitCode maps an error returned by a command to a process exit code.
// Errors that do not come from a failed run are usage or config errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// Options holds the global flags.
type Options struct {
	ConfigPath string
	LogLevel   string
	Stderr     io.Writer
}

// App represents the labflow CLI application.
type App struct {
	Options Options
}

// NewApp creates a new labflow CLI application.
func NewApp() *App {
	return &App{Options: Options{Stderr: os.Stderr}}
}

// CreateRootCommand creates and configures the root command.
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labflow",
		Short: "Run timed laboratory experiment plans",
		Long: `labflow executes experiment plans: sequences of instrument actions,
measurements and timed waits, optionally gated on metrics computed from
earlier measurements. Measurements can be persisted to CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&app.Options.ConfigPath, "config", "c", "", "path to YAML plan file (required)")
	rootCmd.PersistentFlags().StringVar(&app.Options.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides the plan)")

	app.addRunCommand(rootCmd)
	app.addValidateCommand(rootCmd)

	return rootCmd
}
