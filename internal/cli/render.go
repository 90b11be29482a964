// Package cli renders analysis results for a terminal and runs the
// interactive shell.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"chessmate/internal/board"
	"chessmate/internal/core"
	"chessmate/internal/platform"
	"chessmate/internal/processor"
	"chessmate/internal/storage"
)

var labelOrder = []core.Label{
	core.LabelTimeTrouble,
	core.LabelBlunder,
	core.LabelMistake,
	core.LabelInaccuracy,
	core.LabelMinor,
}

var labelColors = map[core.Label]color.Attribute{
	core.LabelTimeTrouble: color.FgMagenta,
	core.LabelBlunder:     color.FgRed,
	core.LabelMistake:     color.FgYellow,
	core.LabelInaccuracy:  color.FgCyan,
	core.LabelMinor:       color.FgWhite,
}

// Printer writes tables and messages. Styling (borders, colors) is on when the
// output is a terminal.
type Printer struct {
	out    io.Writer
	styled bool
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styled: IsTerminal(out)}
}

// IsTerminal reports whether w is a file attached to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) SetStyled(styled bool) { p.styled = styled }

func (p *Printer) Styled() bool { return p.styled }

func (p *Printer) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if p.styled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (p *Printer) label(l core.Label) string {
	attr, ok := labelColors[core.Label(strings.TrimSpace(string(l)))]
	if !ok {
		return string(l)
	}
	return p.paint(attr, string(l))
}

func (p *Printer) Message(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Error(err error) {
	msg := err.Error()
	if kind := core.KindOf(err); kind != core.KindUnknown {
		msg = fmt.Sprintf("%s (%s)", msg, kind)
	}
	fmt.Fprintln(p.out, p.paint(color.FgRed, "Error: "+msg))
}

// JSON writes v indented
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report prints the summary, the mistake table and the clusters
func (p *Printer) Report(r *processor.Report) {
	p.Summary(r)
	if len(r.Mistakes) > 0 {
		fmt.Fprintln(p.out)
		p.Mistakes(r.Mistakes)
	}
	if len(r.Clusters) > 0 {
		fmt.Fprintln(p.out)
		p.Clusters(r.Clusters)
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintln(p.out)
		p.Skipped(r.Skipped)
	}
}

func (p *Printer) Summary(r *processor.Report) {
	p.Message("%s on %s: %s games, %s moves, %s mistakes in %s",
		r.Username, r.Platform,
		humanize.Comma(int64(r.Games)),
		humanize.Comma(int64(len(r.Rows))),
		humanize.Comma(int64(len(r.Mistakes))),
		r.Duration.Round(time.Millisecond))

	counts := r.Counts()
	for _, l := range labelOrder {
		if n := counts[l]; n > 0 {
			p.Message("  %s %d", p.label(core.Label(fmt.Sprintf("%-30s", l))), n)
		}
	}
}

func (p *Printer) Mistakes(records []core.MistakeRecord) {
	headers := []string{"Game", "Ply", "Move", "Best", "Best eval", "Actual eval", "Loss", "Time", "Type"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, []string{
			m.GameID,
			strconv.Itoa(m.Ply + 1),
			m.MoveSAN,
			m.BestMove,
			pawns(m.BestEval),
			pawns(m.ActualEval),
			strconv.Itoa(m.CPLoss),
			m.TimeUsed.String(),
			p.label(m.Label),
		})
	}
	fmt.Fprintln(p.out, renderTable(headers, rows, aligns, p.styled))
}

func (p *Printer) Clusters(clusters []core.ClusterResult) {
	headers := []string{"Cluster", "Size"}
	aligns := []columnAlignment{alignRight, alignRight}
	for _, name := range core.FeatureNames {
		headers = append(headers, name)
		aligns = append(aligns, alignRight)
	}

	rows := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		row := []string{strconv.Itoa(c.ID), strconv.Itoa(len(c.Members))}
		for _, v := range c.Centroid {
			row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(p.out, renderTable(headers, rows, aligns, p.styled))
}

func (p *Printer) Skipped(skipped []processor.Skipped) {
	rows := make([][]string, 0, len(skipped))
	for _, s := range skipped {
		rows = append(rows, []string{s.GameID, s.Reason})
	}
	fmt.Fprintln(p.out, renderTable([]string{"Skipped game", "Reason"}, rows, nil, p.styled))
}

// Rows prints the per-move table, optionally limited to one game
func (p *Printer) Rows(rows []core.Row, gameID string) {
	headers := []string{"Game", "Move", "SAN", "Eval", "Time", "Loss", "Type", "Cluster"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if gameID != "" && r.GameID != gameID {
			continue
		}
		line := []string{r.GameID, strconv.Itoa(r.MoveNumber), r.Move, r.Evaluation, "", "", "", ""}
		if r.TimeSpent != nil {
			line[4] = strconv.FormatFloat(*r.TimeSpent, 'f', 1, 64)
		}
		if r.CPLoss != nil {
			line[5] = strconv.Itoa(*r.CPLoss)
			line[6] = p.label(core.Label(r.MistakeType))
		}
		if r.Cluster != nil {
			line[7] = strconv.Itoa(*r.Cluster)
		}
		out = append(out, line)
	}
	fmt.Fprintln(p.out, renderTable(headers, out, aligns, p.styled))
}

// Position draws the board a mistake was played from, seen from the mover's side
func (p *Printer) Position(m core.MistakeRecord) error {
	b, err := board.ParseFEN(m.FEN)
	if err != nil {
		return core.Wrap(core.KindDataIntegrity, "position", err)
	}

	dots := "."
	if b.Turn() == core.ColorBlack {
		dots = "..."
	}
	p.Message("%d%s %s (%s, %d cp), best was %s", m.Ply/2+1, dots, m.MoveSAN, p.label(m.Label), m.CPLoss, m.BestMove)
	p.Message("%s", b.Diagram(b.Turn()))
	return nil
}

func (p *Printer) Platforms(infos []platform.Info) {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		state := p.paint(color.FgGreen, "enabled")
		if !info.Enabled {
			state = p.paint(color.FgHiBlack, "disabled")
		}
		rows = append(rows, []string{info.Name, state})
	}
	fmt.Fprintln(p.out, renderTable([]string{"Platform", "State"}, rows, nil, p.styled))
}

// Analyses prints archived runs. Start times are relative to now.
func (p *Printer) Analyses(records []storage.AnalysisRecord) {
	if len(records) == 0 {
		p.Message("No analyses found")
		return
	}

	headers := []string{"ID", "Username", "Platform", "Started", "Duration", "Games", "Mistakes", "Skipped", "Clusters"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}

	rows := make([][]string, 0, len(records))
	for _, a := range records {
		rows = append(rows, []string{
			a.AnalysisID,
			a.Username,
			a.Platform,
			humanize.Time(a.StartedAt),
			(time.Duration(a.DurationMS) * time.Millisecond).String(),
			humanize.Comma(int64(a.Games)),
			humanize.Comma(int64(a.Mistakes)),
			strconv.Itoa(a.Skipped),
			strconv.Itoa(a.Clusters),
		})
	}
	fmt.Fprintln(p.out, renderTable(headers, rows, aligns, p.styled))
}

func (p *Printer) ArchivedMistakes(mistakes []storage.MistakeRow) {
	if len(mistakes) == 0 {
		p.Message("No mistakes recorded")
		return
	}

	headers := []string{"Game", "Ply", "Move", "Best", "Loss", "Time", "Type", "Cluster"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight}

	rows := make([][]string, 0, len(mistakes))
	for _, m := range mistakes {
		spent := ""
		if m.TimeSpent != nil {
			spent = strconv.FormatFloat(*m.TimeSpent, 'f', 1, 64)
		}
		rows = append(rows, []string{
			m.GameID,
			strconv.Itoa(m.Ply + 1),
			m.MoveSAN,
			m.BestMove,
			strconv.Itoa(m.CPLoss),
			spent,
			p.label(core.Label(m.Label)),
			strconv.Itoa(m.Cluster),
		})
	}
	fmt.Fprintln(p.out, renderTable(headers, rows, aligns, p.styled))
}

// pawns renders centipawns in the coarse pawn notation
func pawns(cp int) string {
	return core.CP(cp).String()
}
