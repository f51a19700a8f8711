package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
)

func newCatFileCmd() *cobra.Command {
	var showType bool

	cmd := &cobra.Command{
		Use:   "cat-file <hash|rev:path>",
		Short: "Print the canonical payload of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := resolveObject(r, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showType {
				objType, err := r.Store.TypeOf(h)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, objType)
				return nil
			}
			_, data, err := r.ReadObject(h)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type only")
	return cmd
}

// resolveObject accepts a full object id or "<rev>:<path>", where rev is
// anything ResolveRevision takes and path names a file or directory in
// that commit's tree.
func resolveObject(r *repo.Repo, arg string) (object.Hash, error) {
	rev, relPath, ok := strings.Cut(arg, ":")
	if !ok {
		return object.ParseHash(arg)
	}
	id, err := r.ResolveRevision(rev)
	if err != nil {
		return "", err
	}
	c, err := r.Store.ReadCommit(id)
	if err != nil {
		return "", err
	}
	if strings.Trim(relPath, "/") == "" {
		return c.TreeHash, nil
	}
	entry, err := r.TreeEntryAt(c.TreeHash, relPath)
	if err != nil {
		return "", err
	}
	return entry.Hash, nil
}
