package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch|commit|HEAD~n>",
		Short: "Switch HEAD and restore the working tree",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeBranches(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			head, id, err := r.Checkout(args[0])
			if err != nil {
				return err
			}
			if err := materialize(r, id); err != nil {
				return err
			}
			if err := r.Save(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if name, ok := head.Branch(); ok {
				fmt.Fprintf(out, "Switched to branch '%s'\n", name)
				return nil
			}
			fmt.Fprintf(out, "HEAD is now detached at %s\n", id.Short())
			return nil
		},
	}
}
