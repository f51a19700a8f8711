package repo

import (
	"sync"

	"github.com/odvcencio/kbgit/pkg/object"
)

// DefaultBranch is the branch a new repository starts on.
const DefaultBranch = "master"

// Repo is one repository: the object store, the branch table, HEAD and the
// remotes table, passed explicitly to every operation.
//
// All exported methods are safe for concurrent use. Mutating operations hold
// the write lock for their whole duration, so an import followed by a ref
// update is observed atomically by readers.
type Repo struct {
	RootDir string        // working directory root, empty for in-memory repos
	MetaDir string        // .kbgit/ directory, empty for in-memory repos
	Store   *object.Store // content-addressed object store
	Config  Config        // settings from config.toml; remotes live in the remote table

	mu       sync.RWMutex
	branches map[string]*Branch
	head     Head
	remotes  map[string]Remote
}

// Branch is a mutable named pointer. Tip is the most recent commit (empty
// for a branch with no commits); Created is where the branch pointed when it
// was made and bounds its history in Log.
type Branch struct {
	Tip     object.Hash
	Created object.Hash
}

// FileEntry is one working tree file: a slash-separated path relative to
// the repository root and its content.
type FileEntry struct {
	Path    string
	Content []byte
}

// New returns an empty in-memory repository with an empty DefaultBranch and
// HEAD attached to it.
func New() *Repo {
	return &Repo{
		Store:    object.NewStore(),
		branches: map[string]*Branch{DefaultBranch: {}},
		head:     Attached(DefaultBranch),
		remotes:  make(map[string]Remote),
		Config:   DefaultConfig(),
	}
}

// ReadObject returns the type and canonical payload of any stored object.
func (r *Repo) ReadObject(h object.Hash) (object.ObjectType, []byte, error) {
	return r.Store.Read(h)
}
