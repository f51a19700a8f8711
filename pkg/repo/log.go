package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/kbgit/pkg/object"
)

// LogEntry is one commit in a history listing.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// BranchLog is the history of one branch, bounded by its fork point.
type BranchLog struct {
	Name    string
	Branch  Branch
	Entries []LogEntry
}

// Log returns the history of every branch with commits, sorted by branch
// name. Each branch lists the commits reachable from its tip, stopping at
// the commit it was created at, newest first.
func (r *Repo) Log() ([]BranchLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []BranchLog
	for _, name := range r.branchNamesLocked() {
		b := *r.branches[name]
		if b.Tip == "" {
			continue
		}
		entries, err := r.branchHistoryLocked(b)
		if err != nil {
			return nil, fmt.Errorf("log %q: %w", name, err)
		}
		out = append(out, BranchLog{Name: name, Branch: b, Entries: entries})
	}
	return out, nil
}

// BranchHistory returns the bounded history of a single branch.
func (r *Repo) BranchHistory(name string) ([]LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.branches[name]
	if !ok {
		return nil, notFoundBranch("log", name)
	}
	if b.Tip == "" {
		return nil, nil
	}
	entries, err := r.branchHistoryLocked(*b)
	if err != nil {
		return nil, fmt.Errorf("log %q: %w", name, err)
	}
	return entries, nil
}

func (r *Repo) branchHistoryLocked(b Branch) ([]LogEntry, error) {
	var stop []object.Hash
	if b.Created != "" {
		stop = append(stop, b.Created)
	}
	reached, err := r.Store.ReachableCommits([]object.Hash{b.Tip}, stop)
	if err != nil {
		return nil, err
	}
	return sortByTimestamp(reached), nil
}

// History follows first-parent links from start, newest first, returning
// at most limit commits (all when limit <= 0).
func (r *Repo) History(start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for cur := start; cur != "" && (limit <= 0 || len(out) < limit); {
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, LogEntry{Hash: cur, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return out, nil
}

// sortByTimestamp orders commits newest first. Equal timestamps are ordered
// by hash so the output is stable.
func sortByTimestamp(in []object.CommitEntry) []LogEntry {
	out := make([]LogEntry, len(in))
	for i, e := range in {
		out[i] = LogEntry{Hash: e.Hash, Commit: e.Commit}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Commit.Timestamp != out[j].Commit.Timestamp {
			return out[i].Commit.Timestamp > out[j].Commit.Timestamp
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}
