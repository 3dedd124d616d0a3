package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"labflow/internal/config"
	"labflow/internal/logging"
	"labflow/internal/plan"
)

func (app *App) loadConfig() (*config.Config, error) {
	if app.Options.ConfigPath == "" {
		return nil, errors.New("--config is required")
	}
	return config.LoadConfig(app.Options.ConfigPath)
}

func (app *App) addValidateCommand(rootCmd *cobra.Command) {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan without running it",
		Long: `Parse the plan, build its devices and bind every step's arguments to the
device methods it calls. Nothing is executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			// Validation must not create the output directory.
			cfg.Experiment.OutputDir = ""

			p, err := plan.Compile(cfg, logging.Discard())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %q is valid: %d steps, %d devices, planned wait %v\n",
				p.Name, len(p.Experiment.Steps()), len(p.Devices.Names()), cfg.TotalWait())
			return nil
		},
	}
	rootCmd.AddCommand(validateCmd)
}
