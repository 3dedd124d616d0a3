// Package main provides the labflow CLI, which runs YAML experiment plans
// against simulated laboratory instruments.
package main

import (
	"fmt"
	"os"

	"labflow/cmd/labflow/internal/cli"
)

func main() {
	app := cli.NewApp()
	rootCmd := app.CreateRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
