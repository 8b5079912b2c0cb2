package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/output"
)

func newFindCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "find [path]",
		Short:   "Show the cached status of a repository",
		GroupID: GroupQuery,
		Args:    cobra.MaximumNArgs(1),
		Long: `Show the cached status of the repository containing path.

The daemon starts watching the repository on first use. Defaults to the
current directory.`,
		Example: `  promptgit find                 # Repository of the current directory
  promptgit find ~/src/app/cmd   # Any path inside a repository
  promptgit find -f yaml         # Output as YAML`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != output.FormatJSON && format != output.FormatYAML {
				return fmt.Errorf("invalid format %q: must be %q or %q", format, output.FormatJSON, output.FormatYAML)
			}

			ctx := cmd.Context()
			path := targetPath(ctx, args)

			snap, err := newClient(ctx).FindRepo(ctx, path)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no status for %s: not a git repository or daemon not running", path)
			}
			return output.FromContext(ctx).Encode(format, snap)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatJSON, "Output format (json, yaml)")
	cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{output.FormatJSON, output.FormatYAML}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}
