package repo

import (
	"fmt"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

// CommitBundle is a commit with its whole snapshot inlined, the unit of
// transfer for push and pull.
type CommitBundle struct {
	Hash   object.Hash
	Commit *object.CommitObj
	Root   *object.TreeSnapshot
}

// RefPolicy says how ImportBranch moves the destination branch.
type RefPolicy int

const (
	// TrackRemote is used by pull: an existing branch's Created becomes its
	// previous tip; a new branch is created at the received tip.
	TrackRemote RefPolicy = iota
	// OverwriteBranch is used by push: the tip is replaced unconditionally,
	// an existing branch keeps its Created and a new one takes the sender's.
	OverwriteBranch
)

// ImportRequest carries everything ImportBranch needs.
type ImportRequest struct {
	Branch  string
	Info    Branch
	Commits []CommitBundle
	Policy  RefPolicy
}

// ImportResult reports the outcome of ImportBranch.
type ImportResult struct {
	Branch         string
	Tip            object.Hash
	CommitsWritten int
	ObjectsWritten int
}

// ExportBranch returns the named branch and every commit reachable from its
// tip, each carrying its full tree.
func (r *Repo) ExportBranch(name string) (Branch, []CommitBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.branches[name]
	if !ok {
		return Branch{}, nil, notFoundBranch("export", name)
	}
	if b.Tip == "" {
		return *b, nil, nil
	}
	reached, err := r.Store.ReachableCommits([]object.Hash{b.Tip}, nil)
	if err != nil {
		return Branch{}, nil, fmt.Errorf("export %q: %w", name, err)
	}
	bundles := make([]CommitBundle, 0, len(reached))
	for _, e := range reached {
		snap, err := r.Store.SnapshotTree(e.Commit.TreeHash)
		if err != nil {
			return Branch{}, nil, fmt.Errorf("export %q: commit %s: %w", name, e.Hash.Short(), err)
		}
		bundles = append(bundles, CommitBundle{Hash: e.Hash, Commit: e.Commit, Root: snap})
	}
	return *b, bundles, nil
}

// ImportBranch inserts the received commits and their trees, insert-if-absent,
// then points req.Branch at req.Info.Tip according to req.Policy. Every hash
// is recomputed. The branch is only moved once the tip's full ancestry is
// present, and the whole sequence runs under the write lock. HEAD is not
// changed.
func (r *Repo) ImportBranch(req ImportRequest) (*ImportResult, error) {
	if err := ValidateBranchName(req.Branch); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if req.Policy != TrackRemote && req.Policy != OverwriteBranch {
		return nil, failure.Errorf(failure.Validation, "import %q: unknown ref policy %d", req.Branch, req.Policy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := &ImportResult{Branch: req.Branch, Tip: req.Info.Tip}
	for _, bundle := range req.Commits {
		if bundle.Commit == nil {
			return res, failure.Errorf(failure.Validation, "import %q: commit %s has no body", req.Branch, bundle.Hash.Short())
		}
		root, n, err := r.Store.ImportTree(bundle.Root)
		res.ObjectsWritten += n
		if err != nil {
			return res, fmt.Errorf("import %q: commit %s: %w", req.Branch, bundle.Hash.Short(), err)
		}
		if root != bundle.Commit.TreeHash {
			return res, failure.Errorf(failure.Corrupt, "import %q: commit %s: tree %s does not match snapshot %s",
				req.Branch, bundle.Hash.Short(), bundle.Commit.TreeHash.Short(), root.Short())
		}
		if err := object.ValidateCommit(bundle.Commit); err != nil {
			return res, fmt.Errorf("import %q: commit %s: %w", req.Branch, bundle.Hash.Short(), err)
		}
		inserted, err := r.Store.WriteRecord(object.Record{
			Hash: bundle.Hash,
			Type: object.TypeCommit,
			Data: object.MarshalCommit(bundle.Commit),
		})
		if err != nil {
			return res, fmt.Errorf("import %q: commit %s: %w", req.Branch, bundle.Hash.Short(), err)
		}
		if inserted {
			res.CommitsWritten++
			res.ObjectsWritten++
		}
	}

	if req.Info.Tip != "" {
		if _, err := r.Store.ReachableCommits([]object.Hash{req.Info.Tip}, nil); err != nil {
			return res, fmt.Errorf("import %q: incomplete history for tip %s: %w", req.Branch, req.Info.Tip.Short(), err)
		}
	}

	prev, existed := r.branches[req.Branch]
	next := &Branch{Tip: req.Info.Tip}
	switch req.Policy {
	case TrackRemote:
		next.Created = req.Info.Tip
		if existed {
			next.Created = prev.Tip
		}
	case OverwriteBranch:
		next.Created = req.Info.Created
		if existed {
			next.Created = prev.Created
		}
	}
	r.branches[req.Branch] = next
	return res, nil
}
