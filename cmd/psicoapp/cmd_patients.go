package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"psicoapp/internal/orchestrator"
	"psicoapp/internal/output"
)

var showDetail bool

var patientsCmd = &cobra.Command{
	Use:   "patients [term]",
	Short: "Browse consolidated patient views",
	Long: `Without a term, lists the most recently seen patients. With a term,
searches names (tolerating small typos), CPF and e-mail. A single match,
or --detail, prints the full view with totals and recent sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			views, err := app.Search.Browse(ctx, term)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				out.Info("No patients found.")
				return nil
			}
			if showDetail || (term != "" && len(views) == 1) {
				now := time.Now()
				for i, v := range views {
					if i > 0 {
						out.Info("")
					}
					output.RenderView(out.Writer(), v, now)
				}
				return nil
			}
			output.RenderViewList(out.Writer(), views)
			return nil
		})
	},
}

func init() {
	patientsCmd.Flags().BoolVarP(&showDetail, "detail", "d", false, "Print the full view of every match")
}
