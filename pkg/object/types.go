package object

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	TreeModeDir  = "40000"
	TreeModeFile = "100644"
)

// EntryKind tags a TreeEntry as a file or a subdirectory.
type EntryKind int

const (
	EntryBlob EntryKind = iota
	EntryTree
)

func (k EntryKind) String() string {
	switch k {
	case EntryBlob:
		return "blob"
	case EntryTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Kind selects what Hash names:
// a Blob for EntryBlob, a TreeObj for EntryTree.
type TreeEntry struct {
	Name string
	Kind EntryKind
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Kind == EntryTree
}

// TreeObj holds a list of tree entries, sorted by Name once serialized.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Signature string
	Message   string
}

// Record is one object in its canonical serialized form.
type Record struct {
	Hash Hash
	Type ObjectType
	Data []byte
}
