package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"psicoapp/internal/orchestrator"
)

var (
	dryRun    bool
	watchMode bool
)

var importCmd = &cobra.Command{
	Use:   "import [file.xlsx|dir...]",
	Short: "Import the legacy spreadsheet into the database",
	Long: `Reads the "dados" (patients) and "entradas" (sessions) sheets of each
workbook, cleans the rows and inserts them in batches. Directories are
searched for workbooks.

With --watch, monitors the given directories (or import.watchDirs from the
configuration) and imports every spreadsheet dropped there until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchMode {
			return runWatch(cmd, args)
		}
		if len(args) == 0 {
			return errors.New("at least one workbook is required")
		}
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			paths, err := app.ExpandPaths(args)
			if err != nil {
				return err
			}
			summary := app.ImportFiles(ctx, paths, dryRun)

			for _, res := range summary.Results {
				if res.Err != nil {
					out.Error("%s: %v", res.Path, res.Err)
					continue
				}
				s := res.Summary
				out.Verbose("%s: %d/%d patients, %d/%d sessions", res.Path,
					s.PatientsReady, s.PatientsRead, s.SessionsReady, s.SessionsRead)
			}
			out.Info("%s", summary.String())
			if summary.HasErrors() {
				return errors.New("some workbooks failed to import")
			}
			return nil
		})
	},
}

func runWatch(cmd *cobra.Command, dirs []string) error {
	if len(dirs) == 0 && len(cfg.Import.WatchDirs) == 0 {
		return errors.New("no directories to watch: pass them as arguments or set import.watchDirs")
	}
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := app.Watch(ctx, dirs)
		if err != nil {
			return err
		}
		out.Info("Watching for spreadsheets. Press Ctrl+C to stop.")
		<-ctx.Done()

		summary := w.Stop()
		out.Info("Imported %d files (%d failed, %d skipped) in %s.",
			summary.Imported, summary.Failed, summary.Skipped, summary.Duration.Round(time.Second))
		return nil
	})
}

func init() {
	importCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Read and clean the workbooks without writing")
	importCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Watch directories for new workbooks")
}
