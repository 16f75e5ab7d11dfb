package ratingsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fheprop/pkg/logger"
)

// Default flag values.
const (
	defaultBaseURL    = "http://localhost:9080"
	defaultProjects   = 3
	defaultWorkers    = 4
	defaultTimeout    = 30 * time.Second
	defaultReadyWait  = 30 * time.Second
	defaultRunBudget  = 10 * time.Minute
	logFilePermission = 0600
)

// SetupLogging sends log output to stdout and, when logFile is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithOutput(out), logger.WithFormat("text")); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// NewRootCommand returns the rating-sim command.
func NewRootCommand() *cobra.Command {
	cfg := &Config{}
	var budget time.Duration

	cmd := &cobra.Command{
		Use:   "rating-sim",
		Short: "Drive a running rating service end to end and verify its invariants",
		Long: `rating-sim connects the service wallet, optionally switches chain, creates
projects, rates each once, replays the idempotency key, attempts a second
rating (which the contract must reject) and then checks the project list,
statistics, stored scores and raters against what it wrote.

Exits non-zero when the service cannot be driven or an invariant fails.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Projects <= 0 {
				return errors.New("--projects must be positive")
			}
			if err := SetupLogging(cfg.LogFile, cfg.Verbose); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), budget)
			defer cancel()

			_, err := Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the service")
	f.IntVar(&cfg.Projects, "projects", defaultProjects, "Number of projects to create and rate")
	f.Uint64Var(&cfg.ChainID, "chain", 0, "Chain id to switch to first (0 keeps the current chain)")
	f.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "Seed for generated scores")
	f.IntVar(&cfg.Workers, "workers", defaultWorkers, "Concurrent readers during verification")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.ReadyWait, "ready-wait", defaultReadyWait, "How long to wait for the session to become writable")
	f.DurationVar(&budget, "budget", defaultRunBudget, "Overall run deadline")
	f.StringVar(&cfg.ReportFile, "report", "", "Write a JSON report to this file")
	f.StringVar(&cfg.LogFile, "log", "", "Also write log output to this file")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}
