package main

import (
	"errors"

	"github.com/spf13/cobra"

	"psicoapp/internal/audit"
	"psicoapp/internal/output"
)

var (
	historyLimit     int
	historyOperation string
	historyCheck     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show renames, undos and imports from the audit log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := audit.NewReader(cfg.Audit.LogDirectory)

		if historyCheck {
			result, err := reader.CheckIntegrity()
			if err != nil {
				return err
			}
			out.Info("%s: %s (%d valid lines)", result.FilePath, result.Status, result.TotalLines)
			if result.Status == audit.IntegrityCorrupt {
				return errors.New(result.ErrorMessage)
			}
			return nil
		}

		var (
			events []audit.Event
			err    error
		)
		if historyOperation != "" {
			events, err = reader.Operation(historyOperation)
		} else {
			events, err = reader.Latest(historyLimit)
		}
		if err != nil {
			return err
		}
		if len(events) == 0 {
			out.Info("No recorded operations.")
			return nil
		}
		output.RenderEvents(out.Writer(), events)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of most recent events to show, newest first (0 for all)")
	historyCmd.Flags().StringVar(&historyOperation, "operation", "", "Show the events of one operation id")
	historyCmd.Flags().BoolVar(&historyCheck, "check", false, "Verify the integrity of the active log")
}
