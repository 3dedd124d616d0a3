package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"labflow/internal/collector"
	"labflow/internal/core"
	"labflow/internal/experiment"
	"labflow/internal/logging"
	"labflow/internal/plan"
	"labflow/internal/progress"
	"labflow/internal/telemetry"
)

type runOptions struct {
	outputDir   string
	metricsAddr string
	format      string
	quiet       bool
}

func (app *App) addRunCommand(rootCmd *cobra.Command) {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan",
		Long: `Run a plan in the background and print a summary when it finishes.
SIGINT or SIGTERM stops the run cooperatively: the current step completes,
no further step starts, and the summary is still printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("--format must be 'text' or 'json', got %q", opts.format)
			}
			return app.run(cmd, opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for measurement CSV files (overrides the plan)")
	runCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().StringVar(&opts.format, "format", "text", "summary format: text, json")
	runCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(runCmd)
}

func (app *App) run(cmd *cobra.Command, opts runOptions) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		cfg.Experiment.OutputDir = opts.outputDir
	}

	level := cfg.Logging.Level
	if app.Options.LogLevel != "" {
		level = app.Options.LogLevel
	}
	logger := logging.New(app.Options.Stderr, level)

	coll := collector.NewCollector()
	reporter := core.MultiReporter{coll}

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reporter = append(reporter, telemetry.New(reg))
		srv := serveMetrics(opts.metricsAddr, reg, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	p, err := plan.Compile(cfg, logger, experiment.WithReporter(reporter))
	if err != nil {
		return err
	}
	exp := p.Experiment

	prog := progress.NewProgress(coll, opts.quiet)
	prog.SetOutput(app.Options.Stderr)
	prog.Printf("labflow starting: plan %q, %d steps, planned wait %v",
		p.Name, len(exp.Steps()), cfg.TotalWait())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	if err := exp.Start(cmd.Context(), true); err != nil {
		return runFailed(err)
	}
	prog.Start()

	go func() {
		if _, ok := <-sigCh; ok {
			prog.Print("Received interrupt signal, stopping after the current step...")
			exp.Stop()
		}
	}()

	runErr := exp.Wait()
	prog.Stop()

	summary := coll.Compute()
	summary.Measurements = collector.SummarizeMeasurements(exp.Measurements())

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		collector.FormatJSON(out, summary)
	} else {
		collector.FormatText(out, summary)
	}

	if runErr != nil {
		return runFailed(runErr)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
