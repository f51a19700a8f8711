package repo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

// BranchInfo is one row of Branches.
type BranchInfo struct {
	Name    string
	Branch  Branch
	Current bool
}

// ValidateBranchName rejects names that cannot be used as branch names.
// Slashes are allowed so remote-tracking names like "origin/main" work.
func ValidateBranchName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return failure.Errorf(failure.Validation, "branch name is required")
	case name == "HEAD", strings.HasPrefix(name, "-"):
		return failure.Errorf(failure.Validation, "invalid branch name %q", name)
	case strings.ContainsAny(name, " \t\n\x00~^:"):
		return failure.Errorf(failure.Validation, "invalid branch name %q: contains whitespace or one of ~^:", name)
	case strings.Contains(name, ".."), strings.Contains(name, "//"),
		strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return failure.Errorf(failure.Validation, "invalid branch name %q", name)
	}
	return nil
}

// CreateBranch creates branch name at commit at (empty for a branch with no
// commits) and attaches HEAD to it. It fails if the branch exists or at is
// not a known commit.
func (r *Repo) CreateBranch(name string, at object.Hash) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[name]; ok {
		return failure.Errorf(failure.Conflict, "create branch: branch %q already exists", name)
	}
	if at != "" {
		if _, err := r.Store.ReadCommit(at); err != nil {
			return fmt.Errorf("create branch %q: %w", name, err)
		}
	}
	r.branches[name] = &Branch{Tip: at, Created: at}
	r.head = Attached(name)
	return nil
}

// DeleteBranch removes a branch. The attached branch cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.head.Branch(); ok && current == name {
		return failure.Errorf(failure.Conflict, "delete branch: cannot delete current branch %q", name)
	}
	if _, ok := r.branches[name]; !ok {
		return notFoundBranch("delete branch", name)
	}
	delete(r.branches, name)
	return nil
}

// Branch returns a copy of the named branch.
func (r *Repo) Branch(name string) (Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.branches[name]
	if !ok {
		return Branch{}, notFoundBranch("branch", name)
	}
	return *b, nil
}

// ListBranches returns the branch names sorted alphabetically.
func (r *Repo) ListBranches() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branchNamesLocked()
}

func (r *Repo) branchNamesLocked() []string {
	names := make([]string, 0, len(r.branches))
	for name := range r.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Branches returns every branch sorted by name with the attached one marked.
func (r *Repo) Branches() []BranchInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, _ := r.head.Branch()
	out := make([]BranchInfo, 0, len(r.branches))
	for _, name := range r.branchNamesLocked() {
		out = append(out, BranchInfo{Name: name, Branch: *r.branches[name], Current: name == current})
	}
	return out
}

// CurrentBranch returns the attached branch name, or "" when detached.
func (r *Repo) CurrentBranch() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, _ := r.head.Branch()
	return name
}

// CheckoutBranch attaches HEAD to the named branch and returns its tip, which
// the caller materializes onto the working tree.
func (r *Repo) CheckoutBranch(name string) (object.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[name]
	if !ok {
		return "", notFoundBranch("checkout", name)
	}
	r.head = Attached(name)
	return b.Tip, nil
}

// CheckoutCommit moves HEAD to commit id. If a branch's tip is id, HEAD is
// attached to that branch (the alphabetically first when several match);
// otherwise HEAD is detached at id.
func (r *Repo) CheckoutCommit(id object.Hash) (Head, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.Store.ReadCommit(id); err != nil {
		return Head{}, fmt.Errorf("checkout: %w", err)
	}
	for _, name := range r.branchNamesLocked() {
		if r.branches[name].Tip == id {
			r.head = Attached(name)
			return r.head, nil
		}
	}
	r.head = Detached(id)
	return r.head, nil
}

// Checkout resolves target as a branch name first, then as a revision (see
// ResolveRevision), and moves HEAD there. It returns the resulting HEAD and
// the commit to materialize.
func (r *Repo) Checkout(target string) (Head, object.Hash, error) {
	// HEAD while attached stays on its branch, even if others share the tip.
	if strings.TrimSpace(target) == "HEAD" {
		if name, ok := r.HeadState().Branch(); ok {
			target = name
		}
	}
	if tip, err := r.CheckoutBranch(target); err == nil {
		return Attached(target), tip, nil
	} else if !failure.Is(err, failure.NotFound) {
		return Head{}, "", err
	}

	id, err := r.ResolveRevision(target)
	if err != nil {
		return Head{}, "", fmt.Errorf("checkout %q: %w", target, err)
	}
	head, err := r.CheckoutCommit(id)
	if err != nil {
		return Head{}, "", err
	}
	return head, id, nil
}

// ResolveRevision turns "HEAD", "HEAD~n", a branch name or a full commit id
// into a commit id.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	switch {
	case rev == "HEAD":
		h := r.ResolveHead()
		if h == "" {
			return "", failure.Errorf(failure.NotFound, "HEAD has no commits")
		}
		return h, nil
	case strings.HasPrefix(rev, "HEAD~"):
		n, err := strconv.Atoi(strings.TrimPrefix(rev, "HEAD~"))
		if err != nil {
			return "", failure.Errorf(failure.Validation, "invalid revision %q", rev)
		}
		return r.HeadAncestor(n)
	}
	if b, err := r.Branch(rev); err == nil {
		if b.Tip == "" {
			return "", failure.Errorf(failure.NotFound, "branch %q has no commits", rev)
		}
		return b.Tip, nil
	}
	return object.ParseHash(rev)
}

func notFoundBranch(op, name string) error {
	return failure.Detailed(failure.NotFound, fmt.Sprintf("%s: branch %q not found", op, name), map[string]string{"branch": name})
}
