package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/object"
)

func newBranchCmd() *cobra.Command {
	var deleteName string

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteName != "" {
				if err := r.DeleteBranch(deleteName); err != nil {
					return err
				}
				if err := r.Save(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted branch %s\n", deleteName)
				return nil
			}

			if len(args) == 0 {
				head := r.HeadState()
				if id, ok := head.Commit(); ok {
					fmt.Fprintf(out, "* (HEAD detached at %s)\n", id.Short())
				}
				for _, info := range r.Branches() {
					marker := " "
					if info.Current {
						marker = "*"
					}
					tip := "(empty)"
					if info.Branch.Tip != "" {
						tip = info.Branch.Tip.Short()
					}
					fmt.Fprintf(out, "%s %s %s\n", marker, info.Name, tip)
				}
				return nil
			}

			var at object.Hash
			if len(args) == 2 {
				at, err = r.ResolveRevision(args[1])
				if err != nil {
					return err
				}
			} else {
				at = r.ResolveHead()
			}

			before := r.ResolveHead()
			if err := r.CreateBranch(args[0], at); err != nil {
				return err
			}
			if at != before {
				if err := materialize(r, at); err != nil {
					return err
				}
			}
			if err := r.Save(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Switched to a new branch '%s'\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete a branch")
	_ = cmd.RegisterFlagCompletionFunc("delete", completeBranches)
	return cmd
}
