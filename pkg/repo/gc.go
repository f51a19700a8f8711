package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/kbgit/pkg/object"
)

// GCOptions controls what GC removes.
type GCOptions struct {
	// PruneObjects also sweeps trees and blobs no surviving commit refers to.
	// By default only unreachable commits are removed.
	PruneObjects bool
}

// GCSummary reports what GC removed.
type GCSummary struct {
	CommitsRemoved int
	TreesRemoved   int
	BlobsRemoved   int
	CommitsKept    int
}

// GC deletes every commit not reachable from a branch tip or HEAD. With
// PruneObjects it also deletes trees and blobs unreachable from the kept
// commits.
func (r *Repo) GC(opts GCOptions) (*GCSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roots := r.gcRootsLocked()
	keep, err := r.Store.ReachableCommits(roots, nil)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	keepSet := make(map[object.Hash]struct{}, len(keep))
	for _, e := range keep {
		keepSet[e.Hash] = struct{}{}
	}

	summary := &GCSummary{CommitsKept: len(keepSet)}
	for _, h := range r.Store.Hashes(object.TypeCommit) {
		if _, ok := keepSet[h]; ok {
			continue
		}
		r.Store.Delete(h)
		summary.CommitsRemoved++
	}
	if !opts.PruneObjects {
		return summary, nil
	}

	live, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	for _, t := range []object.ObjectType{object.TypeTree, object.TypeBlob} {
		for _, h := range r.Store.Hashes(t) {
			if _, ok := live[h]; ok {
				continue
			}
			r.Store.Delete(h)
			if t == object.TypeTree {
				summary.TreesRemoved++
			} else {
				summary.BlobsRemoved++
			}
		}
	}
	return summary, nil
}

func (r *Repo) gcRootsLocked() []object.Hash {
	rootSet := make(map[object.Hash]struct{}, len(r.branches)+1)
	for _, b := range r.branches {
		if b.Tip != "" {
			rootSet[b.Tip] = struct{}{}
		}
	}
	if h := r.resolveHeadLocked(); h != "" {
		rootSet[h] = struct{}{}
	}
	roots := make([]object.Hash, 0, len(rootSet))
	for h := range rootSet {
		roots = append(roots, h)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}
