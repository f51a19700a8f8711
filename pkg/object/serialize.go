package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name so the same
// set of entries always produces the same bytes. Each entry is one line:
//
//	mode hash name
//
// where mode is 100644 for a blob and 40000 for a subtree. The name is last
// so it may contain spaces.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\n", modeForKind(e.Kind), e.Hash, e.Name)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		kind, err := kindForMode(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: parts[2],
			Kind: kind,
			Hash: Hash(parts[1]),
		})
	}
	return tr, nil
}

// ValidateTree checks that entry names are legal path segments, unique
// within the tree, and that every entry names an object.
func ValidateTree(tr *TreeObj) error {
	seen := make(map[string]struct{}, len(tr.Entries))
	for _, e := range tr.Entries {
		if err := ValidateEntryName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return failure.Errorf(failure.Validation, "tree: duplicate entry %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		if _, err := ParseHash(string(e.Hash)); err != nil {
			return fmt.Errorf("tree entry %q: %w", e.Name, err)
		}
	}
	return nil
}

// ValidateEntryName checks that name can appear as one path segment.
func ValidateEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return failure.Errorf(failure.Validation, "invalid path segment %q", name)
	case strings.ContainsAny(name, "/\x00\n"):
		return failure.Errorf(failure.Validation, "invalid path segment %q: contains '/', NUL or newline", name)
	}
	return nil
}

func modeForKind(k EntryKind) string {
	if k == EntryTree {
		return TreeModeDir
	}
	return TreeModeFile
}

func kindForMode(mode string) (EntryKind, error) {
	switch mode {
	case TreeModeFile:
		return EntryBlob, nil
	case TreeModeDir:
		return EntryTree, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	timestamp T
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}

// ValidateCommit checks the fields that would break the line-oriented
// header encoding.
func ValidateCommit(c *CommitObj) error {
	if _, err := ParseHash(string(c.TreeHash)); err != nil {
		return fmt.Errorf("commit tree: %w", err)
	}
	for _, p := range c.Parents {
		if _, err := ParseHash(string(p)); err != nil {
			return fmt.Errorf("commit parent: %w", err)
		}
	}
	if strings.ContainsAny(c.Author, "\n\x00") {
		return failure.Errorf(failure.Validation, "commit author %q contains a newline or NUL", c.Author)
	}
	if strings.Contains(c.Signature, "\n") {
		return failure.Errorf(failure.Validation, "commit signature contains a newline")
	}
	return nil
}
