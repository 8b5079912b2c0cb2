package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/output"
	"github.com/raphi011/promptgit/internal/status"
	"github.com/raphi011/promptgit/internal/ui/static"
)

func newReposCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "repos",
		Short:   "List repositories cached by the daemon",
		Aliases: []string{"ls"},
		GroupID: GroupQuery,
		Args:    cobra.NoArgs,
		Long: `List every repository the daemon currently watches, sorted by root.

On a terminal the list is a table; otherwise one tab-separated line per
repository is printed.`,
		Example: `  promptgit repos            # Table or tab-separated lines
  promptgit repos -f json    # Full snapshots as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(format) {
				return fmt.Errorf("invalid format %q: must be text, json or yaml", format)
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)

			repos, err := newClient(ctx).GetAllRepos(ctx)
			if err != nil {
				return err
			}

			if format != output.FormatText {
				return out.Encode(format, repos)
			}

			if len(repos) == 0 {
				if isTerminal(out) {
					out.Println("No repositories cached.")
				}
				return nil
			}

			if isTerminal(out) {
				out.Print(formatReposTable(repos))
				return nil
			}
			for _, r := range repos {
				out.Println(strings.Join(static.SnapshotRow(r), "\t"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format (text, json, yaml)")
	cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{output.FormatText, output.FormatJSON, output.FormatYAML}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

func formatReposTable(repos []*status.Snapshot) string {
	rows := make([][]string, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, static.SnapshotRow(r))
	}
	return static.RenderTable(static.SnapshotHeaders, rows)
}

// isTerminal reports whether the printer writes to a terminal.
func isTerminal(p *output.Printer) bool {
	f, ok := p.Writer().(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
