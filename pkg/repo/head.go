package repo

import (
	"fmt"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

// Head is the repository's current position: attached to a branch, following
// its tip, or detached at a commit. The fields are unexported so a Head can
// only be built by Attached or Detached and never holds both. The zero Head
// is neither attached nor detached; it is only returned alongside an error.
type Head struct {
	kind     headKind
	branch   string
	detached object.Hash
}

type headKind uint8

const (
	headUnset headKind = iota
	headAttached
	headDetached
)

// Attached returns a Head following the named branch.
func Attached(branch string) Head {
	return Head{kind: headAttached, branch: branch}
}

// Detached returns a Head pinned at commit h.
func Detached(h object.Hash) Head {
	return Head{kind: headDetached, detached: h}
}

// IsDetached reports whether HEAD is pinned to a commit.
func (h Head) IsDetached() bool {
	return h.kind == headDetached
}

// Branch returns the attached branch name.
func (h Head) Branch() (string, bool) {
	return h.branch, h.kind == headAttached
}

// Commit returns the detached commit id.
func (h Head) Commit() (object.Hash, bool) {
	return h.detached, h.kind == headDetached
}

func (h Head) String() string {
	switch h.kind {
	case headAttached:
		return "on " + h.branch
	case headDetached:
		return fmt.Sprintf("detached at %s", h.detached.Short())
	}
	return "unset"
}

// HeadState returns the current HEAD.
func (r *Repo) HeadState() Head {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// ResolveHead returns the commit HEAD points at: the detached id, or the
// attached branch's tip, which is empty for a branch with no commits.
func (r *Repo) ResolveHead() object.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveHeadLocked()
}

func (r *Repo) resolveHeadLocked() object.Hash {
	if id, ok := r.head.Commit(); ok {
		return id
	}
	if b, ok := r.branches[r.head.branch]; ok {
		return b.Tip
	}
	return ""
}

// HeadAncestor walks n first-parent links back from HEAD, like HEAD~n.
func (r *Repo) HeadAncestor(n int) (object.Hash, error) {
	if n < 0 {
		return "", failure.Errorf(failure.Validation, "HEAD~%d: negative generation", n)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur := r.resolveHeadLocked()
	if cur == "" {
		return "", failure.Errorf(failure.NotFound, "HEAD~%d: HEAD has no commits", n)
	}
	for i := 0; i < n; i++ {
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return "", fmt.Errorf("HEAD~%d: %w", n, err)
		}
		if len(c.Parents) == 0 {
			return "", failure.Errorf(failure.NotFound, "HEAD~%d: commit %s has no parent", n, cur.Short())
		}
		cur = c.Parents[0]
	}
	return cur, nil
}
