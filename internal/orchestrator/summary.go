package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"psicoapp/internal/importer"
	"psicoapp/internal/scanner"
	"psicoapp/internal/watcher"
)

// ImportResult is the outcome of importing one file.
type ImportResult struct {
	Path    string
	Summary *importer.Summary // May be partial when Err is set
	Err     error
}

// RunSummary contains statistics from an import run.
type RunSummary struct {
	Files            int
	Succeeded        int
	Failed           int
	PatientsInserted int
	SessionsInserted int
	DryRun           bool
	Duration         time.Duration
	Results          []ImportResult
}

// HasErrors reports whether any workbook failed.
func (s *RunSummary) HasErrors() bool {
	return s.Failed > 0
}

// String renders the one-line totals.
func (s *RunSummary) String() string {
	verb := "inserted"
	if s.DryRun {
		verb = "ready (dry run)"
	}
	return fmt.Sprintf("Imported %d of %d files: %d patients and %d sessions %s, %d errors",
		s.Succeeded, s.Files, s.PatientsInserted, s.SessionsInserted, verb, s.Failed)
}

// ImportFiles imports each path in order. A failing file is recorded and
// the run continues with the next one.
func (a *App) ImportFiles(ctx context.Context, paths []string, dryRun bool) *RunSummary {
	start := time.Now()
	summary := &RunSummary{Files: len(paths), DryRun: dryRun}

	for _, path := range paths {
		res := a.importOne(ctx, path, dryRun)
		summary.Results = append(summary.Results, res)
		if res.Summary != nil {
			if dryRun {
				summary.PatientsInserted += res.Summary.PatientsReady
				summary.SessionsInserted += res.Summary.SessionsReady
			} else {
				summary.PatientsInserted += res.Summary.PatientsInserted
				summary.SessionsInserted += res.Summary.SessionsInserted
			}
		}
		if res.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	summary.Duration = time.Since(start)
	return summary
}

func (a *App) importOne(ctx context.Context, path string, dryRun bool) ImportResult {
	im := a.Importer
	if dryRun {
		im = importer.New(a.Store, ImportOptions(a.Config, true), a.Logger.Named("import"))
	}

	sum, err := im.ImportFile(ctx, path)
	res := ImportResult{Path: path, Summary: sum, Err: err}
	if dryRun {
		return res
	}

	patients, sessions := 0, 0
	if sum != nil {
		patients, sessions = sum.PatientsInserted, sum.SessionsInserted
	}
	if patients+sessions > 0 {
		a.invalidateSearch()
	}
	if a.Audit != nil {
		if aerr := a.Audit.RecordImport(path, patients, sessions, err); aerr != nil {
			a.Logger.Error("Failed to record import", zap.String("file", path), zap.Error(aerr))
		}
	}
	return res
}

// ExpandPaths replaces every directory in paths with the workbooks it
// contains, using the watch patterns. Files are kept as given.
func (a *App) ExpandPaths(paths []string) ([]string, error) {
	filter := watcher.NewFileFilter(a.Config.Import.WatchPatterns, a.Config.Import.IgnorePatterns)
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := scanner.Scan(p, scanner.Options{Accept: filter.Accepts})
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// Watch imports the workbooks already waiting in the configured drop
// folders (or dirs, when given), then starts a watcher that imports every
// new one. Stop the returned watcher to end the session.
func (a *App) Watch(ctx context.Context, dirs []string) (*watcher.Watcher, error) {
	if len(dirs) == 0 {
		dirs = a.Config.Import.WatchDirs
	}
	w := watcher.New(WatchConfig(a.Config.Import), a.handleDropped, a.Logger.Named("watch"))
	if err := w.Start(ctx, dirs); err != nil {
		return nil, err
	}

	backlog, err := a.ExpandPaths(dirs)
	if err != nil {
		w.Stop()
		return nil, err
	}
	for _, path := range backlog {
		if err := a.handleDropped(ctx, path); err != nil {
			a.Logger.Error("Backlog import failed", zap.String("file", path), zap.Error(err))
		}
	}
	return w, nil
}

func (a *App) handleDropped(ctx context.Context, path string) error {
	res := a.importOne(ctx, path, false)
	if res.Err != nil {
		return res.Err
	}
	if suffix := a.Config.Import.ProcessedSuffix; suffix != "" {
		if err := os.Rename(path, processedPath(path, suffix)); err != nil {
			a.Logger.Warn("Failed to mark file as imported", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}

// processedPath appends suffix to path, numbering the result when an
// earlier import of the same file name is already there:
// "a.xlsx.done", "a.xlsx.done_2", "a.xlsx.done_3", ...
func processedPath(path, suffix string) string {
	candidate := path + suffix
	for n := 2; fileExists(candidate); n++ {
		candidate = path + suffix + "_" + strconv.Itoa(n)
	}
	return candidate
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
