package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lpsinger/observing-scenarios-simulations/asciitable"
	"github.com/lpsinger/observing-scenarios-simulations/splitter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	var column string
	var debug bool

	cmd := &cobra.Command{
		Use:   "sort-table <table-path>",
		Short: "Sort an ASCII event table in place by coinc_event_id",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
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
	cmd.Flags().StringVar(&column, "column", "coinc_event_id", "Column to sort by.")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logs.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		logger, err := splitter.NewLogger(debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		table, err := asciitable.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := table.SortBy(column); err != nil {
			return err
		}
		if _, err := splitter.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), table.Bytes()); err != nil {
			return err
		}
		logger.Info("sorted", zap.String("path", path), zap.String("column", column), zap.Int("rows", len(table.Rows)))
		return nil
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sort-table:", err)
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
