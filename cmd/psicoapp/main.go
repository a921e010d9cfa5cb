// Package main provides the psicoapp command line: name reconciliation,
// patient browsing, spreadsheet import and the audit history.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"psicoapp/internal/config"
	"psicoapp/internal/logger"
	"psicoapp/internal/orchestrator"
	"psicoapp/internal/output"
)

var (
	configPath string
	verbose    bool
	logLevel   string

	cfg *config.Configuration
	log *zap.Logger
	out *output.Output
)

var rootCmd = &cobra.Command{
	Use:   "psicoapp",
	Short: "Patient records toolkit for a psychology practice",
	Long: `psicoapp keeps the session ledger and the patient register consistent.

It lists session names that match no patient, renames them in bulk with
an undo history, browses consolidated patient views and imports the
legacy spreadsheet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		} else if verbose {
			cfg.Log.Level = "debug"
		}
		log, err = logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		oc := output.DefaultConfig()
		oc.Verbose = verbose
		out = output.New(oc)

		result := config.ValidateConfig(cfg)
		for _, w := range result.Warnings {
			log.Debug("Configuration warning", zap.String("field", w.Field), zap.String("message", w.Message))
		}
		if !result.Valid {
			for _, e := range result.Errors {
				out.Error("%s: %s", e.Field, e.Message)
			}
			return &config.ConfigError{Type: config.ValidationError, Message: "see the errors above"}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getEnv("PSICO_CONFIG", "psicoapp.json"), "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		namesCmd,
		divergentCmd,
		renameCmd,
		shellCmd,
		patientsCmd,
		importCmd,
		historyCmd,
		configCmd,
	)
}

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *orchestrator.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := orchestrator.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			log.Warn("Failed to close application", zap.Error(cerr))
		}
	}()
	return fn(ctx, app)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+output.Describe(err))
		os.Exit(1)
	}
}
