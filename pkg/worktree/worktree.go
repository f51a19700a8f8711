// Package worktree moves snapshots between a repository and the files on
// disk: Scan reads the working tree for a commit, Materialize writes a
// commit back out.
package worktree

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"

	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
)

const filePerm os.FileMode = 0o644

// Scan returns every regular file under the filesystem root, sorted by
// slash-separated path. The repository metadata directory, paths matched by
// the root .kbgitignore, symlinks and other special files are skipped.
func Scan(fs billy.Filesystem) ([]repo.FileEntry, error) {
	ig, err := LoadIgnore(fs)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	var out []repo.FileEntry
	err = walk(fs, ig, func(rel string, fi os.FileInfo) error {
		if fi.IsDir() {
			return nil
		}
		data, err := readFile(fs, rel)
		if err != nil {
			return err
		}
		out = append(out, repo.FileEntry{Path: rel, Content: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// walk visits every directory and regular file Scan would consider, parents
// before children.
func walk(fs billy.Filesystem, ig *Ignore, fn func(rel string, fi os.FileInfo) error) error {
	stack := []string{""}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		infos, err := fs.ReadDir(dirOrRoot(dir))
		if err != nil {
			return fmt.Errorf("scan %q: %w", dirOrRoot(dir), err)
		}
		for _, fi := range infos {
			rel := path.Join(dir, fi.Name())
			switch {
			case fi.IsDir():
				if dir == "" && fi.Name() == repo.MetaDirName {
					continue
				}
				if ig.Match(rel, true) {
					continue
				}
				if err := fn(rel, fi); err != nil {
					return err
				}
				stack = append(stack, rel)
			case fi.Mode().IsRegular():
				if ig.Match(rel, false) {
					continue
				}
				if err := fn(rel, fi); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Materialize replaces the working tree with the snapshot of commit id:
// everything but the metadata directory is removed, then every file of the
// commit is written. An empty id leaves an empty working tree.
func Materialize(fs billy.Filesystem, r *repo.Repo, id object.Hash) error {
	var files []repo.FileEntry
	if id != "" {
		var err error
		if files, err = r.Files(id); err != nil {
			return fmt.Errorf("materialize %s: %w", id.Short(), err)
		}
	}

	if err := Clear(fs); err != nil {
		return err
	}
	for _, f := range files {
		if dir := path.Dir(f.Path); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("materialize %s: mkdir %q: %w", id.Short(), dir, err)
			}
		}
		if err := util.WriteFile(fs, f.Path, f.Content, filePerm); err != nil {
			return fmt.Errorf("materialize %s: write %q: %w", id.Short(), f.Path, err)
		}
	}
	return nil
}

// Clear removes every file Scan would return, then any directory left empty.
// Ignored paths and the metadata directory stay in place.
func Clear(fs billy.Filesystem) error {
	ig, err := LoadIgnore(fs)
	if err != nil {
		return fmt.Errorf("clear working tree: %w", err)
	}
	var dirs []string
	err = walk(fs, ig, func(rel string, fi os.FileInfo) error {
		if fi.IsDir() {
			dirs = append(dirs, rel)
			return nil
		}
		if err := fs.Remove(rel); err != nil {
			return fmt.Errorf("clear working tree: remove %q: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Deepest first, so a parent is only checked once its children are gone.
	sort.Slice(dirs, func(i, j int) bool { return dirs[i] > dirs[j] })
	for _, dir := range dirs {
		infos, err := fs.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("clear working tree: %w", err)
		}
		if len(infos) > 0 {
			continue
		}
		if err := fs.Remove(dir); err != nil {
			return fmt.Errorf("clear working tree: remove %q: %w", dir, err)
		}
	}
	return nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("scan: open %q: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("scan: read %q: %w", name, err)
	}
	return data, nil
}

func dirOrRoot(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}
