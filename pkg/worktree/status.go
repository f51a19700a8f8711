package worktree

import (
	"fmt"
	"sort"

	billy "gopkg.in/src-d/go-billy.v4"

	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
)

// ChangeKind classifies a path that differs between a commit and the
// working tree.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is one path whose content differs from the compared commit.
type Change struct {
	Path string
	Kind ChangeKind
}

// Status compares the working tree against commit id by blob hash: a file
// whose content hashes to the committed blob is clean. An empty id compares
// against the empty snapshot. Changes are sorted by path.
func Status(fs billy.Filesystem, r *repo.Repo, id object.Hash) ([]Change, error) {
	committed := make(map[string]object.Hash)
	if id != "" {
		c, err := r.Store.ReadCommit(id)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		entries, err := r.FlattenTree(c.TreeHash)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		for _, e := range entries {
			committed[e.Path] = e.BlobHash
		}
	}

	files, err := Scan(fs)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	var changes []Change
	for _, f := range files {
		want, ok := committed[f.Path]
		delete(committed, f.Path)
		switch {
		case !ok:
			changes = append(changes, Change{Path: f.Path, Kind: Added})
		case object.HashObject(object.TypeBlob, f.Content) != want:
			changes = append(changes, Change{Path: f.Path, Kind: Modified})
		}
	}
	for p := range committed {
		changes = append(changes, Change{Path: p, Kind: Deleted})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
