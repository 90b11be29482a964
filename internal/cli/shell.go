package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/samber/lo"

	"chessmate/internal/core"
	"chessmate/internal/platform"
	"chessmate/internal/processor"
)

// Analyser runs one analysis; *processor.Processor satisfies it
type Analyser interface {
	Analyse(ctx context.Context, req processor.Request) (*processor.Report, error)
}

// Catalog lists configured platforms; *platform.Registry satisfies it
type Catalog interface {
	Platforms() []platform.Info
}

// errQuit ends the shell loop
var errQuit = errors.New("quit")

// Command defines a shell command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(ctx context.Context, args []string) error
}

// Shell is the interactive front end: analyse a player, then browse the
// last report.
type Shell struct {
	analyser Analyser
	catalog  Catalog
	printer  *Printer
	log      *slog.Logger
	commands map[string]*Command
	last     *processor.Report
}

func NewShell(analyser Analyser, catalog Catalog, printer *Printer, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	s := &Shell{
		analyser: analyser,
		catalog:  catalog,
		printer:  printer,
		log:      log,
		commands: make(map[string]*Command),
	}

	s.Register(&Command{
		Name:        "analyse",
		ShortName:   "a",
		Description: "Analyse a player's recent games",
		Usage:       "analyse <platform> <username> [games]",
		Handler:     s.analyseHandler,
	})
	s.Register(&Command{
		Name:        "platforms",
		ShortName:   "p",
		Description: "List configured platforms",
		Usage:       "platforms",
		Handler:     s.platformsHandler,
	})
	s.Register(&Command{
		Name:        "summary",
		Description: "Show the last report's summary",
		Usage:       "summary",
		Handler:     s.summaryHandler,
	})
	s.Register(&Command{
		Name:        "mistakes",
		ShortName:   "m",
		Description: "List the last report's mistakes, optionally of one type",
		Usage:       "mistakes [blunder|mistake|inaccuracy|minor|time]",
		Handler:     s.mistakesHandler,
	})
	s.Register(&Command{
		Name:        "clusters",
		ShortName:   "c",
		Description: "Show the last report's clusters",
		Usage:       "clusters",
		Handler:     s.clustersHandler,
	})
	s.Register(&Command{
		Name:        "history",
		ShortName:   "h",
		Description: "Show one game's moves and the position of its worst mistake",
		Usage:       "history <game-id>",
		Handler:     s.historyHandler,
	})
	s.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     s.helpHandler,
	})
	s.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the shell",
		Usage:       "exit",
		Handler:     func(context.Context, []string) error { return errQuit },
	})
	s.commands["quit"] = s.commands["exit"]

	return s
}

func (s *Shell) Register(cmd *Command) {
	s.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		s.commands[cmd.ShortName] = cmd
	}
}

// Execute runs one input line and reports whether the shell should exit
func (s *Shell) Execute(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	cmd, ok := s.commands[parts[0]]
	if !ok {
		s.printer.Message("Unknown command: %s", parts[0])
		s.printer.Message("Type 'help' for available commands")
		return false
	}

	err := cmd.Handler(ctx, parts[1:])
	switch {
	case err == nil:
		return false
	case errors.Is(err, errQuit):
		return true
	default:
		s.log.Debug("shell command failed", "command", cmd.Name, "error", err)
		s.printer.Error(err)
		return false
	}
}

// Run reads commands until exit, EOF or ctx is cancelled. An empty
// historyFile keeps history in memory only.
func (s *Shell) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer rl.Close()

	s.printer.Message("chessmate shell, type 'help' for commands")

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return err
		}

		if s.Execute(ctx, strings.TrimSpace(line)) {
			return nil
		}
		rl.SetPrompt(s.prompt())
	}
	return ctx.Err()
}

func (s *Shell) prompt() string {
	text := "chessmate"
	if s.last != nil {
		text = fmt.Sprintf("chessmate [%s@%s]", s.last.Username, s.last.Platform)
	}
	if s.printer.Styled() {
		return "\033[33m" + text + " > \033[0m"
	}
	return text + " > "
}

func (s *Shell) analyseHandler(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: analyse <platform> <username> [games]")
	}

	req := processor.Request{Platform: args[0], Username: args[1]}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid game count: %s", args[2])
		}
		req.Count = n
	}

	progress := NewProgress(s.printer.out, fmt.Sprintf("analysing %s", req.Username))
	req.Progress = progress.Update

	report, err := s.analyser.Analyse(ctx, req)
	progress.Finish()
	if err != nil {
		return err
	}

	s.last = report
	s.printer.Summary(report)
	return nil
}

func (s *Shell) platformsHandler(context.Context, []string) error {
	s.printer.Platforms(s.catalog.Platforms())
	return nil
}

func (s *Shell) report() (*processor.Report, error) {
	if s.last == nil {
		return nil, fmt.Errorf("no analysis yet, run 'analyse' first")
	}
	return s.last, nil
}

func (s *Shell) summaryHandler(context.Context, []string) error {
	r, err := s.report()
	if err != nil {
		return err
	}
	s.printer.Report(r)
	return nil
}

var labelAliases = map[string]core.Label{
	"time":       core.LabelTimeTrouble,
	"blunder":    core.LabelBlunder,
	"mistake":    core.LabelMistake,
	"inaccuracy": core.LabelInaccuracy,
	"minor":      core.LabelMinor,
}

func (s *Shell) mistakesHandler(_ context.Context, args []string) error {
	r, err := s.report()
	if err != nil {
		return err
	}

	records := r.Mistakes
	if len(args) > 0 {
		label, ok := labelAliases[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("unknown mistake type: %s", args[0])
		}
		records = lo.Filter(r.Mistakes, func(m core.MistakeRecord, _ int) bool { return m.Label == label })
	}

	if len(records) == 0 {
		s.printer.Message("No mistakes")
		return nil
	}
	s.printer.Mistakes(records)
	return nil
}

func (s *Shell) clustersHandler(context.Context, []string) error {
	r, err := s.report()
	if err != nil {
		return err
	}
	if len(r.Clusters) == 0 {
		s.printer.Message("Not enough mistakes to cluster")
		return nil
	}
	s.printer.Clusters(r.Clusters)
	return nil
}

func (s *Shell) historyHandler(_ context.Context, args []string) error {
	r, err := s.report()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: history <game-id>")
	}

	if !lo.ContainsBy(r.Rows, func(row core.Row) bool { return row.GameID == args[0] }) {
		return core.Errorf(core.KindNotFound, "history", "game %q is not in the last report", args[0])
	}
	s.printer.Rows(r.Rows, args[0])

	mistakes := lo.Filter(r.Mistakes, func(m core.MistakeRecord, _ int) bool { return m.GameID == args[0] })
	if len(mistakes) == 0 {
		return nil
	}
	worst := lo.MaxBy(mistakes, func(a, b core.MistakeRecord) bool { return a.EffectiveLoss() > b.EffectiveLoss() })
	s.printer.Message("")
	return s.printer.Position(worst)
}

func (s *Shell) helpHandler(_ context.Context, args []string) error {
	if len(args) > 0 {
		cmd, ok := s.commands[args[0]]
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		s.printer.Message("%s - %s", cmd.Name, cmd.Description)
		s.printer.Message("Usage: %s", cmd.Usage)
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, cmd := range s.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			names = append(names, cmd.Name)
		}
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		cmd := s.commands[name]
		rows = append(rows, []string{cmd.Usage, cmd.Description})
	}
	s.printer.Message("%s", renderTable([]string{"Command", "Description"}, rows, nil, s.printer.styled))
	return nil
}
