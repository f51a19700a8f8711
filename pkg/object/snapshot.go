package object

import (
	"fmt"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// TreeSnapshot is a tree with every subtree and blob inlined, so a commit's
// whole file set can travel as one value. Hash is the hash of the tree
// object the snapshot was taken from.
type TreeSnapshot struct {
	Hash    Hash            `json:"hash"`
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one inlined tree entry: Data for a blob, Tree for a
// subdirectory.
type SnapshotEntry struct {
	Name string        `json:"name"`
	Mode string        `json:"mode"`
	Hash Hash          `json:"hash"`
	Data []byte        `json:"data,omitempty"`
	Tree *TreeSnapshot `json:"tree,omitempty"`
}

// SnapshotTree inlines the tree named by h and everything below it.
func (s *Store) SnapshotTree(h Hash) (*TreeSnapshot, error) {
	tr, err := s.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("snapshot tree: %w", err)
	}
	snap := &TreeSnapshot{Hash: h, Entries: make([]SnapshotEntry, 0, len(tr.Entries))}
	for _, e := range tr.Entries {
		entry := SnapshotEntry{Name: e.Name, Mode: modeForKind(e.Kind), Hash: e.Hash}
		switch e.Kind {
		case EntryTree:
			sub, err := s.SnapshotTree(e.Hash)
			if err != nil {
				return nil, err
			}
			entry.Tree = sub
		default:
			blob, err := s.ReadBlob(e.Hash)
			if err != nil {
				return nil, fmt.Errorf("snapshot tree %s entry %q: %w", h, e.Name, err)
			}
			entry.Data = blob.Data
		}
		snap.Entries = append(snap.Entries, entry)
	}
	return snap, nil
}

// ImportTree writes a snapshot into the store bottom-up, insert-if-absent.
// Every blob and tree hash is recomputed and must match the hash the
// snapshot carries; a mismatch is a Corrupt error and the mismatching object
// is not stored. It returns the root hash and the number of new objects.
func (s *Store) ImportTree(snap *TreeSnapshot) (Hash, int, error) {
	if snap == nil {
		return "", 0, failure.Errorf(failure.Validation, "import tree: missing snapshot")
	}
	written := 0
	tr := &TreeObj{Entries: make([]TreeEntry, 0, len(snap.Entries))}
	for _, e := range snap.Entries {
		kind, err := kindForMode(e.Mode)
		if err != nil {
			return "", written, failure.Errorf(failure.Validation, "import tree %s entry %q: %s", snap.Hash, e.Name, err)
		}
		var h Hash
		switch kind {
		case EntryTree:
			if e.Tree == nil {
				return "", written, failure.Errorf(failure.Validation, "import tree %s entry %q: subtree missing", snap.Hash, e.Name)
			}
			sub, n, err := s.ImportTree(e.Tree)
			written += n
			if err != nil {
				return "", written, err
			}
			h = sub
		default:
			n, err := s.importRecord(Record{Hash: e.Hash, Type: TypeBlob, Data: e.Data})
			written += n
			if err != nil {
				return "", written, fmt.Errorf("import tree %s entry %q: %w", snap.Hash, e.Name, err)
			}
			h = HashObject(TypeBlob, e.Data)
		}
		if e.Hash != "" && h != e.Hash {
			return "", written, failure.Errorf(failure.Corrupt, "import tree %s entry %q: hash mismatch: expected %s, got %s", snap.Hash, e.Name, e.Hash, h)
		}
		tr.Entries = append(tr.Entries, TreeEntry{Name: e.Name, Kind: kind, Hash: h})
	}
	if err := ValidateTree(tr); err != nil {
		return "", written, err
	}
	n, err := s.importRecord(Record{Hash: snap.Hash, Type: TypeTree, Data: MarshalTree(tr)})
	written += n
	if err != nil {
		return "", written, fmt.Errorf("import tree: %w", err)
	}
	return HashObject(TypeTree, MarshalTree(tr)), written, nil
}

func (s *Store) importRecord(rec Record) (int, error) {
	inserted, err := s.WriteRecord(rec)
	if err != nil {
		return 0, err
	}
	if inserted {
		return 1, nil
	}
	return 0, nil
}
