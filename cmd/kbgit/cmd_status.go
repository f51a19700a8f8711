package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/worktree"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree changes against HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "HEAD %s\n", r.HeadState())

			changes, err := worktree.Status(workingTree(r), r, r.ResolveHead())
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
				return nil
			}
			for _, c := range changes {
				fmt.Fprintf(out, "\t%-9s %s\n", c.Kind.String()+":", c.Path)
			}
			return nil
		},
	}
}
