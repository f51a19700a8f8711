package object

import (
	"fmt"
	"sort"
	"strings"
)

// CommitEntry pairs a commit with its hash.
type CommitEntry struct {
	Hash   Hash
	Commit *CommitObj
}

// ReachableCommits walks the commit graph depth-first from roots along
// parent edges and returns every commit visited, each exactly once, in visit
// order. A parent listed in stopAt is not entered; roots are always
// included. A missing commit is a NotFound error.
func (s *Store) ReachableCommits(roots []Hash, stopAt []Hash) ([]CommitEntry, error) {
	stop := make(map[Hash]struct{}, len(stopAt))
	for _, h := range stopAt {
		if h != "" {
			stop[h] = struct{}{}
		}
	}

	seen := make(map[Hash]struct{})
	var out []CommitEntry
	for _, root := range roots {
		if root == "" {
			continue
		}
		stack := []Hash{root}
		for len(stack) > 0 {
			h := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}

			c, err := s.ReadCommit(h)
			if err != nil {
				return nil, fmt.Errorf("reachable commits: %w", err)
			}
			out = append(out, CommitEntry{Hash: h, Commit: c})

			// Push in reverse so the first parent is walked first.
			for i := len(c.Parents) - 1; i >= 0; i-- {
				p := c.Parents[i]
				if _, stopped := stop[p]; stopped {
					continue
				}
				if _, ok := seen[p]; !ok {
					stack = append(stack, p)
				}
			}
		}
	}
	return out, nil
}

// ReachableSet returns all object hashes reachable from roots by following
// object references: commit to tree and parents, tree to entries. Missing
// objects are skipped.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]struct{}, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := out[h]; ok {
			continue
		}
		if !s.Has(h) {
			continue
		}
		out[h] = struct{}{}

		objType, data, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", h, err)
		}
		refs, err := ReferencedHashes(objType, data)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

// ReferencedHashes returns the hashes an object's payload points at.
func ReferencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
