package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chessmate/internal/cli"
	"chessmate/internal/logger"
)

func newShellCommand(ctx *commandContext) *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Analyse players interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.baseLogger()

			svc, err := openServices(cfg, log)
			if err != nil {
				return err
			}
			defer svc.closeLogged()

			shell := cli.NewShell(svc.processor, svc.registry, cli.NewPrinter(os.Stdout), logger.Component(log, "shell"))
			return shell.Run(cmd.Context(), historyFile)
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", defaultHistoryFile(), "Command history file (empty keeps history in memory)")
	return cmd
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chessmate_history")
}
