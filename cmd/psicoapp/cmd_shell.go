package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"psicoapp/internal/matcher"
	"psicoapp/internal/normalizer"
	"psicoapp/internal/orchestrator"
	"psicoapp/internal/output"
	"psicoapp/internal/reconcile"
)

const shellHelp = `Commands:
  list                 show divergent session names (numbered)
  names                show every session name (numbered)
  suggest <n|name>     patient names similar to a session name (#1, #2, ...)
  rename <n|name> = <new name|#n>
  undo                 revert the most recent rename
  pending              renames that can still be undone
  help, quit`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive reconciliation session with undo",
	Long: `Starts an interactive session over the divergent session names.
Renames made in the session can be undone, most recent first, until the
session ends.

` + shellHelp,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
			return newShell(app, out).run(ctx)
		})
	},
}

// shell is one interactive session. It owns a single reconciler, so undo
// only reaches renames made in this session.
type shell struct {
	app       *orchestrator.App
	out       *output.Output
	session   *reconcile.Reconciler
	listed    []string // Session names from the last numbered listing
	suggested []string // Patient names from the last suggest
	confirm   bool
}

func newShell(app *orchestrator.App, o *output.Output) *shell {
	return &shell{app: app, out: o, session: app.NewSession(), confirm: true}
}

var errQuit = errors.New("quit")

func (s *shell) run(ctx context.Context) error {
	s.out.Info("Type \"help\" for commands.")
	if err := s.exec(ctx, "list"); err != nil {
		s.out.Error("%s", output.Describe(err))
	}
	for {
		line, err := s.out.ReadLine("psicoapp> ")
		if errors.Is(err, output.ErrNoInput) {
			break
		}
		if err != nil {
			return err
		}
		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			s.out.Error("%s", output.Describe(err))
		}
	}
	if n := len(s.session.Pending()); n > 0 {
		s.out.Info("Session ended with %d renames kept.", n)
	}
	return nil
}

func (s *shell) exec(ctx context.Context, line string) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
		return nil
	case "list", "l":
		status, err := s.app.Status(ctx)
		if err != nil {
			return err
		}
		s.show(status.Divergent, "No divergent names.")
	case "names":
		names, err := s.session.ListNames(ctx, reconcile.SourceSessions)
		if err != nil {
			return err
		}
		s.show(names, "No sessions.")
	case "suggest", "s":
		name, err := s.resolve(rest)
		if err != nil {
			return err
		}
		return s.suggest(ctx, name)
	case "rename", "r":
		return s.rename(ctx, rest)
	case "undo", "u":
		op, ok := s.session.Peek()
		restored, err := s.session.UndoLast(ctx)
		if err != nil {
			return err
		}
		if ok {
			s.out.Info("Restored %q on %d sessions.", op.Source, restored)
		}
	case "pending", "p":
		pending := s.session.Pending()
		if len(pending) == 0 {
			s.out.Info("Nothing to undo.")
		}
		for i := len(pending) - 1; i >= 0; i-- {
			op := pending[i]
			s.out.Info("%s  %q -> %q  (%d sessions)", op.CommittedAt.Format("15:04:05"), op.Source, op.Destination, op.Updated)
		}
	case "help", "h", "?":
		s.out.Info(shellHelp)
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type \"help\"", verb)
	}
	return nil
}

func (s *shell) show(names []string, empty string) {
	s.listed = names
	if len(names) == 0 {
		s.out.Info("%s", empty)
		return
	}
	output.RenderNames(s.out.Writer(), names)
}

// resolve accepts a number from the last listing or a literal name.
func (s *shell) resolve(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("a name or list number is required")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(s.listed) {
			return "", fmt.Errorf("no entry %d in the last list", n)
		}
		return s.listed[n-1], nil
	}
	return arg, nil
}

func (s *shell) rename(ctx context.Context, arg string) error {
	left, right, ok := strings.Cut(arg, "=")
	if !ok {
		return errors.New(`usage: rename <n|name> = <new name>`)
	}
	source, err := s.resolve(strings.TrimSpace(left))
	if err != nil {
		return err
	}
	destination := strings.TrimSpace(right)
	if ref, ok := strings.CutPrefix(destination, "#"); ok {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 1 || n > len(s.suggested) {
			return fmt.Errorf("no suggestion %s", destination)
		}
		destination = s.suggested[n-1]
	}

	if s.confirm {
		ids, err := s.session.IDsForName(ctx, source)
		if err != nil {
			return err
		}
		if len(ids) > 0 && !s.out.Confirm(renamePrompt(len(ids), source, destination)) {
			s.out.Info("Cancelled.")
			return nil
		}
	}

	op, err := s.session.CommitRename(ctx, source, destination)
	if err != nil {
		return err
	}
	s.out.Info("%s", describeOperation(op))
	return nil
}

type suggestion struct {
	name  string
	ratio float64
}

// suggest lists patient names close to name, best first.
func (s *shell) suggest(ctx context.Context, name string) error {
	patients, err := s.session.ListNames(ctx, reconcile.SourcePatients)
	if err != nil {
		return err
	}
	query := normalizer.Normalize(name)
	var found []suggestion
	for _, p := range patients {
		candidate := normalizer.Normalize(p)
		if !s.app.Matcher.Matches(candidate, query) {
			continue
		}
		found = append(found, suggestion{name: p, ratio: matcher.Ratio(candidate, query)})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].ratio > found[j].ratio })

	s.suggested = make([]string, len(found))
	for i, f := range found {
		s.suggested[i] = f.name
	}
	if len(found) == 0 {
		s.out.Info("No patient resembles %q.", name)
		return nil
	}
	for i, p := range s.suggested {
		s.out.Info("#%d %s", i+1, p)
	}
	return nil
}

func renamePrompt(n int, source, destination string) string {
	return fmt.Sprintf("Rename %d sessions from %q to %q?", n, source, destination)
}
