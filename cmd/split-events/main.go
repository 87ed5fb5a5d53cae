package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lpsinger/observing-scenarios-simulations/splitter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	var configPath string
	var dbPath string
	var debug bool
	var skipDangling bool
	var duplicates string

	cmd := &cobra.Command{
		Use:   "split-events <input-path> <output-directory>",
		Short: "Split a LIGO-LW event catalog into one file per coinc event",
		Long: "Split a LIGO-LW event catalog into one gzipped document per " +
			"sngl_inspiral<-->sngl_inspiral coinc event, written to <output-directory>/<coinc_event_id>.xml.gz.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file path.")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite ledger path recording runs and written files (overrides config.db).")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logs.")
	cmd.Flags().BoolVar(&skipDangling, "skip-dangling", false, "Log and skip events that reference missing rows instead of aborting.")
	cmd.Flags().StringVar(&duplicates, "duplicates", "", "Duplicate id policy: error or last-write-wins (overrides config.duplicates).")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		// Base config from file (optional)
		fileCfg := &splitter.FileConfig{}
		if configPath != "" {
			cfg, err := splitter.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fileCfg = cfg
		}

		// Merge config + CLI overrides
		flags := cmd.Flags()
		finalDB := fileCfg.DB
		if flags.Changed("db") {
			finalDB = dbPath
		}
		finalDebug := fileCfg.Debug
		if flags.Changed("debug") {
			finalDebug = debug
		}
		finalSkipDangling := fileCfg.SkipDangling
		if flags.Changed("skip-dangling") {
			finalSkipDangling = skipDangling
		}
		finalDuplicates := fileCfg.Duplicates
		if flags.Changed("duplicates") {
			p, err := splitter.ParseDuplicatePolicy(duplicates)
			if err != nil {
				return err
			}
			finalDuplicates = p
		}
		finalTarget := splitter.InspiralCoincDef
		if fileCfg.CoincDef != nil {
			finalTarget = *fileCfg.CoincDef
		}

		logger, err := splitter.NewLogger(finalDebug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		runner, err := splitter.NewRunner(splitter.RunnerConfig{
			DBPath:       finalDB,
			SkipDangling: finalSkipDangling,
			Duplicates:   finalDuplicates,
			GzipLevel:    fileCfg.GzipLevel,
			Target:       finalTarget,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("init runner: %w", err)
		}
		defer runner.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := runner.Run(ctx, args[0], args[1]); err != nil {
			logger.Error("split failed", zap.Error(err))
			return err
		}
		return nil
	}

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "split-events:", err)
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, cmd.UsageString())
			return 2
		}
		return 1
	}
	return 0
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }
