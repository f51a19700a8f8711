package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// MetaDirName is the repository metadata directory inside the root.
const MetaDirName = ".kbgit"

// Init creates a new repository at path: a .kbgit/ directory holding an
// empty DefaultBranch with HEAD attached to it. It fails if .kbgit/ exists.
func Init(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	metaDir := filepath.Join(abs, MetaDirName)
	if _, err := os.Stat(metaDir); err == nil {
		return nil, failure.Errorf(failure.Conflict, "init: repository already exists at %s", metaDir)
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", metaDir, err)
	}

	r := New()
	r.RootDir = abs
	r.MetaDir = metaDir
	if err := r.Save(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .kbgit/ directory and loads the
// repository and its config.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		metaDir := filepath.Join(cur, MetaDirName)
		if info, err := os.Stat(metaDir); err == nil && info.IsDir() {
			return load(cur, metaDir)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, failure.Errorf(failure.NotFound, "open: not a kbgit repository (or any parent up to /): %s", abs)
		}
		cur = parent
	}
}

func load(root, metaDir string) (*Repo, error) {
	r := New()
	r.RootDir = root
	r.MetaDir = metaDir
	if err := r.loadState(); err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	cfg, err := LoadConfig(r.configPath())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.applyConfigLocked(cfg); err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	return r, nil
}

// Reload replaces branches, HEAD and objects with the saved state file,
// picking up saves made by other processes. Config is not reread.
func (r *Repo) Reload() error {
	if r.MetaDir == "" {
		return failure.Errorf(failure.Validation, "reload: repository has no metadata directory")
	}
	if err := r.loadState(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// Save writes the state file and config.toml. Repositories created with New
// have no MetaDir and cannot be saved.
func (r *Repo) Save() error {
	if r.MetaDir == "" {
		return failure.Errorf(failure.Validation, "save: repository has no metadata directory")
	}
	r.mu.RLock()
	state, err := r.encodeStateLocked()
	cfg := r.configSnapshotLocked()
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := writeFileAtomic(r.statePath(), state); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := WriteConfig(r.configPath(), cfg); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
