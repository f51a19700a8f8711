package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/repo"
	"github.com/odvcencio/kbgit/pkg/worktree"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string
	var sign bool
	var signingKey string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the working tree as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return failure.Errorf(failure.Validation, "commit message is required (-m)")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			if author == "" {
				author = defaultAuthor(r)
			}

			var signer repo.CommitSigner
			if sign || signingKey != "" {
				s, keyPath, err := newSSHCommitSigner(signingKey)
				if err != nil {
					return err
				}
				signer = s
				fmt.Fprintf(cmd.ErrOrStderr(), "signing with %s\n", keyPath)
			}

			files, err := worktree.Scan(workingTree(r))
			if err != nil {
				return err
			}
			h, err := r.CommitWithSigner(message, author, time.Now(), files, signer)
			if err != nil {
				return err
			}
			if err := r.Save(); err != nil {
				return err
			}

			branch := "HEAD"
			if name, ok := r.HeadState().Branch(); ok {
				branch = name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, h.Short(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: user.name or $USER)")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "SSH private key for signing (default: ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")

	return cmd
}
