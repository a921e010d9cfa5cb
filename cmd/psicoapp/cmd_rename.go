package main

import (
	"context"

	"github.com/spf13/cobra"

	"psicoapp/internal/orchestrator"
)

var assumeYes bool

var renameCmd = &cobra.Command{
	Use:   "rename <current name> <new name>",
	Short: "Rename every session carrying a name",
	Long: `Renames every session whose name is exactly <current name> (case and
spacing included) to <new name>. Use "psicoapp shell" to undo renames
interactively; a one-off rename is recorded in the audit history.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, destination := args[0], args[1]
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			session := app.NewSession()
			ids, err := session.IDsForName(ctx, source)
			if err != nil {
				return err
			}
			if len(ids) > 0 && !assumeYes && !out.Confirm(renamePrompt(len(ids), source, destination)) {
				out.Info("Cancelled.")
				return nil
			}
			op, err := session.CommitRename(ctx, source, destination)
			if err != nil {
				return err
			}
			out.Info("%s", describeOperation(op))
			return nil
		})
	},
}

func init() {
	renameCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}
