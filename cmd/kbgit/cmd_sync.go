package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/remote"
	"github.com/odvcencio/kbgit/pkg/repo"
)

// syncTarget resolves the remote client and branch for push and pull.
func syncTarget(r *repo.Repo, args []string, command string) (*remote.Client, string, error) {
	client, err := remote.NewClientForRemote(r, args[0], commandLogger(command))
	if err != nil {
		return nil, "", err
	}
	if len(args) == 2 {
		return client, args[1], nil
	}
	branch := r.CurrentBranch()
	if branch == "" {
		return nil, "", failure.Errorf(failure.Conflict, "HEAD is detached; name a branch explicitly")
	}
	return client, branch, nil
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <remote> [branch]",
		Short: "Send a branch and its history to a remote",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			client, branch, err := syncTarget(r, args, "push")
			if err != nil {
				return err
			}
			resp, err := remote.Push(cmd.Context(), client, r, branch)
			if err != nil {
				return err
			}
			tip := "(empty)"
			if resp.Tip != "" {
				tip = resp.Tip.Short()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "To %s\npushed %s to %s (%s)\n", client.BaseURL(), branch, args[0], tip)
			return nil
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <remote> [branch]",
		Short: "Fetch a branch from a remote into <remote>/<branch>",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			client, branch, err := syncTarget(r, args, "pull")
			if err != nil {
				return err
			}
			result, err := remote.Pull(cmd.Context(), client, r, args[0], branch)
			if err != nil {
				return err
			}
			if err := r.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "From %s\npulled %s: %d commits, %d objects written\n",
				client.BaseURL(), result.Branch, result.CommitsWritten, result.ObjectsWritten)
			return nil
		},
	}
}
