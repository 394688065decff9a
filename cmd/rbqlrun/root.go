package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cfg, err := loadConfig()
	if err != nil {
		cfg = Config{LogLevel: "info"}
	}

	root := &cobra.Command{
		Use:   "rbqlrun",
		Short: "Run an RBQL-style query against a delimited-text table",
	}

	var scenarioPath string
	var debugFlag bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a query scenario loaded from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cfg.LogLevel)
			if debugFlag {
				cfg.Debug = true
			}

			execID := uuid.New().String()
			sc, err := loadScenario(scenarioPath)
			if err != nil {
				return err
			}

			start := time.Now()
			logger.Info().Str("execution_id", execID).Str("input", sc.Input).Msg("starting query")

			stats, err := runScenario(sc, cfg.Debug)
			if err != nil {
				logDebugError(logger, execID, err, cfg.Debug)
				return err
			}

			for _, w := range stats.Warnings {
				logger.Warn().Str("execution_id", execID).Msg(w)
			}
			logger.Info().
				Str("execution_id", execID).
				Int64("nr", stats.NR).
				Int64("nu", stats.NU).
				Dur("elapsed", time.Since(start)).
				Msg("query finished")
			return nil
		},
	}
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to a YAML query scenario")
	runCmd.Flags().BoolVar(&debugFlag, "debug", false, "include full error stack traces on failure")
	_ = runCmd.MarkFlagRequired("scenario")

	root.AddCommand(runCmd)
	return root
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(parsed).
		With().Timestamp().Logger()
}
