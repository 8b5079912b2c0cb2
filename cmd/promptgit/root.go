package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/output"
	"github.com/raphi011/promptgit/internal/protocol"
)

// Command group IDs for organizing help output
const (
	GroupDaemon = "daemon"
	GroupQuery  = "query"
	GroupConfig = "config"
)

// annotationSilent marks commands whose diagnostics only appear with
// --verbose, such as the prompt fragment printed on every render.
const annotationSilent = "silent"

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		quiet      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "promptgit",
		Short: "Git status daemon for shell prompts",
		Long: `promptgit keeps the git status of your repositories in memory so shell
prompts can show it instantly.

A background daemon watches every repository it has been asked about and
recomputes its status when files change. Clients ask the daemon over a local
socket and fall back to an empty answer when it is not running.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2, // Enable typo suggestions
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}

			ctx := cmd.Context()
			l := log.New(cmd.ErrOrStderr(), verbose, quiet)
			if cmd.Annotations[annotationSilent] != "" && !verbose {
				l = log.Discard()
			}
			ctx = log.WithLogger(ctx, l)

			if config.FromContext(ctx) == nil {
				cfg, err := loadConfig(configPath)
				if err != nil {
					l.Printf("Warning: %v\n", err)
				}
				ctx = config.WithConfig(ctx, &cfg)
			}

			ctx = output.WithPrinter(ctx, cmd.OutOrStdout())
			cmd.SetContext(ctx)
			return nil
		},
		// Run is not set - shows help when no subcommand provided
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output and external commands")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/promptgit/config.toml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.Version = versionString()
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddGroup(
		&cobra.Group{ID: GroupDaemon, Title: "Daemon Commands:"},
		&cobra.Group{ID: GroupQuery, Title: "Query Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	// Daemon commands
	cmd.AddCommand(newDaemonCmd())

	// Query commands
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newRemoveCmd())

	// Config commands
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCompletionCmd())

	return cmd
}

// Execute runs the root command with signal handling.
func Execute() {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "promptgit: failed to get working directory: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = config.WithWorkDir(ctx, workDir)

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'promptgit -h' for help")
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// newClient returns a protocol client configured from the context.
func newClient(ctx context.Context) *protocol.Client {
	cfg := config.FromContext(ctx)
	return protocol.NewClient(cfg.SocketPath(),
		protocol.WithConnectTimeout(cfg.Client.ConnectTimeout.Duration),
		protocol.WithLogger(log.FromContext(ctx)),
	)
}

// targetPath resolves an optional path argument against the working
// directory.
func targetPath(ctx context.Context, args []string) string {
	wd := config.WorkDirFromContext(ctx)
	if len(args) == 0 || args[0] == "" {
		return wd
	}
	if filepath.IsAbs(args[0]) {
		return filepath.Clean(args[0])
	}
	return filepath.Join(wd, args[0])
}
