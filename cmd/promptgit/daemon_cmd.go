package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/daemon"
	"github.com/raphi011/promptgit/internal/log"
)

func newDaemonCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run the status daemon in the foreground",
		GroupID: GroupDaemon,
		Args:    cobra.NoArgs,
		Long: `Run the status daemon in the foreground until interrupted.

The daemon answers status queries on a per-user unix socket. Only one daemon
runs per socket; starting a second one fails. Logs go to daemon.log_file
from the config (default ~/.local/state/promptgit/daemon.log).`,
		Example: `  promptgit daemon                # Log to the configured file
  promptgit daemon --log-file -   # Log to stderr
  promptgit daemon -v             # Include debug lines`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			l := log.FromContext(ctx)

			dest := cfg.Daemon.LogFile
			if cmd.Flags().Changed("log-file") {
				dest = logFile
			}
			w, err := daemon.OpenLog(dest)
			if err != nil {
				return err
			}
			defer w.Close()

			logger := log.NewDaemon(w, l.IsVerbose())
			if err := daemon.Run(ctx, cfg, daemon.Options{Logger: logger}); err != nil {
				return fmt.Errorf("daemon: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", `Log destination, "-" for stderr`)

	return cmd
}
