package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"psicoapp/internal/orchestrator"
	"psicoapp/internal/output"
	"psicoapp/internal/reconcile"
)

var namesCmd = &cobra.Command{
	Use:       "names [sessions|patients]",
	Short:     "List the distinct names of sessions (default) or patients",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(reconcile.SourceSessions), string(reconcile.SourcePatients)},
	RunE: func(cmd *cobra.Command, args []string) error {
		src := reconcile.SourceSessions
		if len(args) == 1 {
			src = reconcile.Source(args[0])
		}
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			names, err := app.NewSession().ListNames(ctx, src)
			if err != nil {
				return err
			}
			output.RenderNames(out.Writer(), names)
			out.Verbose("%d names", len(names))
			return nil
		})
	},
}

var showUnreferenced bool

var divergentCmd = &cobra.Command{
	Use:   "divergent",
	Short: "List session names that match no patient",
	Long: `Compares session names with patient names after normalization
(case, accents and spacing are ignored) and lists the session names that
have no patient. With --unreferenced, also lists patients without sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			status, err := app.Status(ctx)
			if err != nil {
				return err
			}
			if len(status.Divergent) == 0 {
				out.Info("All %d session names match a patient.", len(status.SessionNames))
			} else {
				out.Info("%d of %d session names match no patient:", len(status.Divergent), len(status.SessionNames))
				output.RenderNames(out.Writer(), status.Divergent)
			}
			if showUnreferenced {
				out.Info("")
				out.Info("%d patients have no session:", len(status.Unreferenced))
				output.RenderNames(out.Writer(), status.Unreferenced)
			}
			return nil
		})
	},
}

func init() {
	divergentCmd.Flags().BoolVarP(&showUnreferenced, "unreferenced", "u", false, "Also list patients without sessions")
}

// describeOperation summarises a committed rename for the operator.
func describeOperation(op *reconcile.RenameOperation) string {
	return fmt.Sprintf("Renamed %d sessions from %q to %q (operation %s).", op.Updated, op.Source, op.Destination, op.ID)
}
