package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxmatch/internal/config"
	"fxmatch/internal/simulation"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPaths []string
	workers     uint
	logLevel    string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "run one or more scenario files",
		Long:  "Loads every scenario file, runs the simulations concurrently and logs a report per party.",
		RunE:  runScenarios,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&configPaths, "config", "c", nil, "scenario file, may be repeated")
	runCmd.Flags().UintVarP(&workers, "workers", "w", 0, "simulations run at once, 0 for one per CPU")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "overrides the configured log level")
	runCmd.MarkFlagRequired("config")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	configs := make([]*config.Config, 0, len(configPaths))
	for _, path := range configPaths {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		configs = append(configs, cfg)
	}
	if err := setupLogging(configs[0].Logging); err != nil {
		return err
	}

	sims, err := simulation.BuildAll(configs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := simulation.RunAll(ctx, sims, workers)
	var failed []error
	for _, result := range results {
		if result.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", result.Simulation.Name(), result.Err))
			continue
		}
		result.Report.Log(log.Logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(failed...)
}

// setupLogging configures the global logger from the first scenario.
func setupLogging(cfg config.Logging) error {
	level := cfg.Level
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = zerolog.LevelInfoValue
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(parsed)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}
