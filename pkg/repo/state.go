package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

const stateFileName = "state.zst"

// stateFile is the on-disk form of the object store, branch table and HEAD.
type stateFile struct {
	Objects  []stateObject          `json:"objects"`
	Branches map[string]stateBranch `json:"branches"`
	Head     stateHead              `json:"head"`
}

type stateObject struct {
	Hash object.Hash       `json:"hash"`
	Type object.ObjectType `json:"type"`
	Data []byte            `json:"data"`
}

type stateBranch struct {
	Tip     object.Hash `json:"tip,omitempty"`
	Created object.Hash `json:"created,omitempty"`
}

type stateHead struct {
	Branch   string      `json:"branch,omitempty"`
	Detached object.Hash `json:"detached,omitempty"`
}

func (r *Repo) statePath() string {
	return filepath.Join(r.MetaDir, stateFileName)
}

// encodeStateLocked serializes the repository to compressed JSON.
func (r *Repo) encodeStateLocked() ([]byte, error) {
	st := stateFile{Branches: make(map[string]stateBranch, len(r.branches))}
	for _, rec := range r.Store.Records() {
		st.Objects = append(st.Objects, stateObject{Hash: rec.Hash, Type: rec.Type, Data: rec.Data})
	}
	for name, b := range r.branches {
		st.Branches[name] = stateBranch{Tip: b.Tip, Created: b.Created}
	}
	if id, ok := r.head.Commit(); ok {
		st.Head.Detached = id
	} else {
		st.Head.Branch = r.head.branch
	}

	raw, err := json.Marshal(&st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// decodeStateLocked replaces the repository contents with a saved state.
// Every object hash is verified on load.
func (r *Repo) decodeStateLocked(data []byte) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return failure.Errorf(failure.Corrupt, "decode state: %v", err)
	}

	var st stateFile
	if err := json.Unmarshal(raw, &st); err != nil {
		return failure.Errorf(failure.Corrupt, "decode state: %v", err)
	}

	store := object.NewStore()
	records := make([]object.Record, len(st.Objects))
	for i, o := range st.Objects {
		records[i] = object.Record{Hash: o.Hash, Type: o.Type, Data: o.Data}
	}
	if err := store.Load(records); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	branches := make(map[string]*Branch, len(st.Branches))
	for name, b := range st.Branches {
		branches[name] = &Branch{Tip: b.Tip, Created: b.Created}
	}

	var head Head
	switch {
	case st.Head.Detached != "" && st.Head.Branch != "":
		return failure.Errorf(failure.Corrupt, "decode state: HEAD is both attached to %q and detached at %s", st.Head.Branch, st.Head.Detached.Short())
	case st.Head.Detached != "":
		head = Detached(st.Head.Detached)
	case st.Head.Branch != "":
		head = Attached(st.Head.Branch)
	default:
		return failure.Errorf(failure.Corrupt, "decode state: HEAD is missing")
	}

	r.Store = store
	r.branches = branches
	r.head = head
	return nil
}

func (r *Repo) loadState() error {
	data, err := os.ReadFile(r.statePath())
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decodeStateLocked(data)
}
