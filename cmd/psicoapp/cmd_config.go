package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"psicoapp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return errors.New(configPath + " already exists, use --force to overwrite")
		}
		if err := config.Save(cfg, configPath); err != nil {
			return err
		}
		out.Info("Wrote %s", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and list warnings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result := config.ValidateConfig(cfg)
		for _, w := range result.Warnings {
			out.Info("warning: %s: %s", w.Field, w.Message)
		}
		out.Info("Configuration %s is valid (driver %s).", configPath, cfg.Database.Driver)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
}
