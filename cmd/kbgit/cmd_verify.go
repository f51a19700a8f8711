package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/failure"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [rev]",
		Short: "Verify the SSH signature of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			h, err := r.ResolveRevision(rev)
			if err != nil {
				return err
			}
			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return err
			}
			if c.Signature == "" {
				return failure.Errorf(failure.Validation, "commit %s is not signed", h.Short())
			}
			fingerprint, err := VerifyCommitSignature(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "good signature on %s from %s\n", h.Short(), fingerprint)
			return nil
		},
	}
}
