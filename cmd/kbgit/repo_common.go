package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"
	log "gopkg.in/src-d/go-log.v1"

	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
	"github.com/odvcencio/kbgit/pkg/worktree"
)

var workDir = "."

func openRepo() (*repo.Repo, error) {
	return repo.Open(workDir)
}

func workingTree(r *repo.Repo) billy.Filesystem {
	return osfs.New(r.RootDir)
}

// materialize writes commit id to the working tree.
func materialize(r *repo.Repo, id object.Hash) error {
	return worktree.Materialize(workingTree(r), r, id)
}

func commandLogger(command string) log.Logger {
	return log.New(log.Fields{"command": command})
}

// defaultAuthor picks the commit author: config user.name, then $USER.
func defaultAuthor(r *repo.Repo) string {
	if name := strings.TrimSpace(r.Config.User.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	return "unknown"
}

// completeBranches offers branch names for shell completion.
func completeBranches(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	r, err := openRepo()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, name := range r.ListBranches() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
