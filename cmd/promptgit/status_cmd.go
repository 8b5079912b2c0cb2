package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/output"
	"github.com/raphi011/promptgit/internal/prompt"
)

// Color modes for the status command.
const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

func newStatusCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:         "status [path]",
		Short:       "Print the prompt fragment for a repository",
		GroupID:     GroupQuery,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationSilent: "true"},
		Long: `Print a short colored status for the repository containing path, meant to
be embedded in a shell prompt.

The command never fails: outside a repository, or when the daemon is not
running, it prints nothing. Colors are forced by default because prompts
capture the output through a pipe.

The fragment is configured in the [prompt] table of the config file.`,
		Example: `  # zsh
  setopt PROMPT_SUBST
  PROMPT='%~$(promptgit status) %# '

  # bash
  PS1='\w$(promptgit status) \$ '`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)

			environ, err := colorEnviron(color)
			if err != nil {
				return err
			}

			snap, err := newClient(ctx).FindRepo(ctx, targetPath(ctx, args))
			if err != nil {
				l.Debug("status unavailable", "err", err)
				return nil
			}

			w := prompt.NewWriter(output.FromContext(ctx).Writer(), environ, prompt.SourceFor(config.FromContext(ctx)))
			if err := w.Write(snap); err != nil {
				l.Debug("write prompt", "err", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", colorAlways, "Color output (auto, always, never)")
	cmd.RegisterFlagCompletionFunc("color", cobra.FixedCompletions([]string{colorAuto, colorAlways, colorNever}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// colorEnviron returns the environment used for color detection under mode.
func colorEnviron(mode string) ([]string, error) {
	environ := os.Environ()
	switch mode {
	case colorAuto:
		return environ, nil
	case colorAlways:
		return append(environ, "CLICOLOR_FORCE=1"), nil
	case colorNever:
		return append(environ, "NO_COLOR=1"), nil
	}
	return nil, fmt.Errorf("invalid color mode %q: must be %s, %s or %s", mode, colorAuto, colorAlways, colorNever)
}
