package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var branch string
	var firstParent bool
	var maxCount int

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history per branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if firstParent || len(args) == 1 {
				rev := "HEAD"
				switch {
				case len(args) == 1:
					rev = args[0]
				case branch != "":
					rev = branch
				}
				start, err := r.ResolveRevision(rev)
				if err != nil {
					return err
				}
				entries, err := r.History(start, maxCount)
				if err != nil {
					return err
				}
				printEntries(out, entries)
				return nil
			}

			if branch != "" {
				entries, err := r.BranchHistory(branch)
				if err != nil {
					return err
				}
				printEntries(out, entries)
				return nil
			}

			logs, err := r.Log()
			if err != nil {
				return err
			}
			for i, bl := range logs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "== %s ==\n", bl.Name)
				printEntries(out, bl.Entries)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "show only this branch")
	cmd.Flags().BoolVar(&firstParent, "first-parent", false, "follow first parents from HEAD (or rev) instead of listing per branch")
	cmd.Flags().IntVarP(&maxCount, "max-count", "n", 0, "with --first-parent or rev, show at most n commits")
	return cmd
}

func printEntries(out io.Writer, entries []repo.LogEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "commit %s\n", e.Hash)
		fmt.Fprintf(out, "Author: %s\n", e.Commit.Author)
		fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Commit.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"))
		if e.Commit.Signature != "" {
			fmt.Fprintln(out, "Signed: yes")
		}
		fmt.Fprintln(out)
		for _, line := range strings.Split(strings.TrimRight(e.Commit.Message, "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		fmt.Fprintln(out)
	}
}
