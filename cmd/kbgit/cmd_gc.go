package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/repo"
)

func newGcCmd() *cobra.Command {
	var pruneObjects bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove commits unreachable from any branch or HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			summary, err := r.GC(repo.GCOptions{PruneObjects: pruneObjects})
			if err != nil {
				return err
			}
			if err := r.Save(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "removed %d commits, kept %d\n", summary.CommitsRemoved, summary.CommitsKept)
			if pruneObjects {
				fmt.Fprintf(out, "removed %d trees, %d blobs\n", summary.TreesRemoved, summary.BlobsRemoved)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pruneObjects, "prune-objects", false, "also remove unreachable trees and blobs")
	return cmd
}
