package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
}

// dirNode is the in-memory shape of one directory before it is hashed.
type dirNode struct {
	files map[string][]byte
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: make(map[string][]byte), dirs: make(map[string]*dirNode)}
}

// CleanPath normalizes a slash-separated working tree path relative to the
// repository root. A backslash is an ordinary name character.
func CleanPath(p string) (string, error) {
	p = strings.TrimLeft(p, "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimLeft(p[2:], "/")
	}
	if p == "" {
		return "", failure.Errorf(failure.Validation, "empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if err := object.ValidateEntryName(seg); err != nil {
			return "", fmt.Errorf("path %q: %w", p, err)
		}
	}
	if p = path.Clean(p); p == "." {
		return "", failure.Errorf(failure.Validation, "empty path")
	}
	return p, nil
}

// groupFiles arranges the flat file list into a directory hierarchy. It is
// pure: nothing is written to the store.
func groupFiles(files []FileEntry) (*dirNode, error) {
	root := newDirNode()
	for _, f := range files {
		p, err := CleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		segs := strings.Split(p, "/")
		dir := root
		for i, seg := range segs[:len(segs)-1] {
			if _, isFile := dir.files[seg]; isFile {
				return nil, failure.Errorf(failure.Validation, "path %q: %q is a file", p, strings.Join(segs[:i+1], "/"))
			}
			child, ok := dir.dirs[seg]
			if !ok {
				child = newDirNode()
				dir.dirs[seg] = child
			}
			dir = child
		}
		name := segs[len(segs)-1]
		if _, dup := dir.files[name]; dup {
			return nil, failure.Errorf(failure.Validation, "duplicate path %q", p)
		}
		if _, isDir := dir.dirs[name]; isDir {
			return nil, failure.Errorf(failure.Validation, "path %q: is a directory", p)
		}
		dir.files[name] = f.Content
	}
	return root, nil
}

// BuildTree converts a flat list of working tree files into a hierarchical
// tree, writing blobs and trees to the store bottom-up and returning the root
// tree hash. Entries are sorted by name before hashing, so the same file set
// yields the same hash regardless of input order.
func (r *Repo) BuildTree(files []FileEntry) (object.Hash, error) {
	root, err := groupFiles(files)
	if err != nil {
		return "", fmt.Errorf("build tree: %w", err)
	}
	return r.writeDir(root, "")
}

func (r *Repo) writeDir(dir *dirNode, prefix string) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(dir.files)+len(dir.dirs))
	for name, content := range dir.files {
		h, err := r.Store.WriteBlob(&object.Blob{Data: content})
		if err != nil {
			return "", fmt.Errorf("write blob %q: %w", path.Join(prefix, name), err)
		}
		entries = append(entries, object.TreeEntry{Name: name, Kind: object.EntryBlob, Hash: h})
	}
	for name, child := range dir.dirs {
		childPrefix := path.Join(prefix, name)
		h, err := r.writeDir(child, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, Kind: object.EntryTree, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object, returning all file entries with their
// full slash-separated paths sorted by path.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	type frame struct {
		hash   object.Hash
		prefix string
	}
	var result []TreeFileEntry
	stack := []frame{{hash: h}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		treeObj, err := r.Store.ReadTree(top.hash)
		if err != nil {
			return nil, fmt.Errorf("flatten tree: read %s: %w", top.hash.Short(), err)
		}
		for _, entry := range treeObj.Entries {
			full := path.Join(top.prefix, entry.Name)
			if entry.IsDir() {
				stack = append(stack, frame{hash: entry.Hash, prefix: full})
				continue
			}
			result = append(result, TreeFileEntry{Path: full, BlobHash: entry.Hash})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// Files returns the full contents of commit id's snapshot.
func (r *Repo) Files(id object.Hash) ([]FileEntry, error) {
	c, err := r.Store.ReadCommit(id)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	flat, err := r.FlattenTree(c.TreeHash)
	if err != nil {
		return nil, err
	}
	out := make([]FileEntry, 0, len(flat))
	for _, f := range flat {
		b, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return nil, fmt.Errorf("files: %s: %w", f.Path, err)
		}
		out = append(out, FileEntry{Path: f.Path, Content: b.Data})
	}
	return out, nil
}

// TreeEntryAt returns the entry at relPath inside tree treeHash.
func (r *Repo) TreeEntryAt(treeHash object.Hash, relPath string) (object.TreeEntry, error) {
	p, err := CleanPath(relPath)
	if err != nil {
		return object.TreeEntry{}, err
	}
	parts := strings.Split(p, "/")
	current := treeHash
	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, fmt.Errorf("read tree %s: %w", current.Short(), err)
		}
		idx := sort.Search(len(treeObj.Entries), func(k int) bool { return treeObj.Entries[k].Name >= part })
		if idx == len(treeObj.Entries) || treeObj.Entries[idx].Name != part {
			return object.TreeEntry{}, failure.Errorf(failure.NotFound, "path %q not found in tree %s", p, treeHash.Short())
		}
		entry := treeObj.Entries[idx]
		if i == len(parts)-1 {
			return entry, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, failure.Errorf(failure.NotFound, "path %q not found in tree %s", p, treeHash.Short())
		}
		current = entry.Hash
	}
	return object.TreeEntry{}, failure.Errorf(failure.NotFound, "path %q not found", p)
}
