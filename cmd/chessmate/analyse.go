package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chessmate/internal/cli"
	"chessmate/internal/processor"
)

func newAnalyseCommand(ctx *commandContext) *cobra.Command {
	var (
		platformName string
		games        int
		since        string
		until        string
		jsonOutput   bool
		showRows     bool
	)

	cmd := &cobra.Command{
		Use:   "analyse <username>",
		Short: "Analyse one player's games and print the mistakes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req := processor.Request{Username: args[0], Platform: platformName, Count: games}
			if req.Since, err = parseDate(since); err != nil {
				return err
			}
			if req.Until, err = parseDate(until); err != nil {
				return err
			}

			svc, err := openServices(cfg, ctx.baseLogger())
			if err != nil {
				return err
			}
			defer svc.closeLogged()

			printer := cli.NewPrinter(cmd.OutOrStdout())
			if !jsonOutput {
				progress := cli.NewProgress(os.Stderr, fmt.Sprintf("analysing %s", req.Username))
				req.Progress = progress.Update
				defer progress.Finish()
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			report, err := svc.processor.Analyse(runCtx, req)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printer.JSON(report)
			}
			printer.Report(report)
			if showRows {
				printer.Message("")
				printer.Rows(report.Rows, "")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformName, "platform", "p", "lichess", "Platform to fetch games from")
	cmd.Flags().IntVarP(&games, "games", "n", 0, "Number of most recent games (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "Only games started on or after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "Only games started before this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVar(&showRows, "rows", false, "Also print every analysed move")
	return cmd
}

// parseDate accepts a calendar date or an RFC3339 instant; empty means unset
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
}
