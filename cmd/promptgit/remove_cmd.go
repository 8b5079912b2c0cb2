package main

import (
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/output"
	"github.com/raphi011/promptgit/internal/protocol"
)

func newRemoveCmd() *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:     "remove [path]",
		Short:   "Drop a repository from the daemon's cache",
		Aliases: []string{"rm"},
		GroupID: GroupQuery,
		Args:    cobra.MaximumNArgs(1),
		Long: `Drop a repository from the daemon's cache and stop watching it.

The next query for the repository computes its status from scratch. With
--match, the cached repository whose root best fuzzy-matches the pattern is
removed instead of the one containing path.`,
		Example: `  promptgit remove             # Repository of the current directory
  promptgit remove ~/src/app   # Repository containing a path
  promptgit remove -m app      # Best fuzzy match among cached roots`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			client := newClient(ctx)

			if match != "" && len(args) > 0 {
				return fmt.Errorf("path and --match are mutually exclusive")
			}

			path := targetPath(ctx, args)
			if match != "" {
				root, err := matchRoot(cmd, client, match)
				if err != nil {
					return err
				}
				path = root
			}

			removed, err := client.RemoveRepo(ctx, path)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("not cached: %s", path)
			}
			out.Printf("Removed %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "Fuzzy-match a cached repository root")
	cmd.RegisterFlagCompletionFunc("match", completeCachedRoots)

	return cmd
}

// matchRoot picks the cached root that best matches pattern.
func matchRoot(cmd *cobra.Command, client *protocol.Client, pattern string) (string, error) {
	ctx := cmd.Context()
	repos, err := client.GetAllRepos(ctx)
	if err != nil {
		return "", err
	}

	roots := make([]string, len(repos))
	for i, r := range repos {
		roots[i] = r.Root
	}

	matches := fuzzy.Find(pattern, roots)
	if len(matches) == 0 {
		return "", fmt.Errorf("no cached repository matches %q", pattern)
	}
	if len(matches) > 1 {
		log.FromContext(ctx).Debug("fuzzy match", "pattern", pattern, "best", matches[0].Str, "candidates", len(matches))
	}
	return matches[0].Str, nil
}

// completeCachedRoots offers the roots the daemon currently caches.
func completeCachedRoots(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil || config.FromContext(ctx) == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	repos, err := newClient(ctx).GetAllRepos(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	roots := make([]string, 0, len(repos))
	for _, r := range repos {
		roots = append(roots, r.Root)
	}
	return roots, cobra.ShellCompDirectiveNoFileComp
}
