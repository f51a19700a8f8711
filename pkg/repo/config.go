package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/kbgit/pkg/failure"
)

const (
	configFileName = "config.toml"

	DefaultSyncTimeout     = 30 * time.Second
	DefaultSyncMaxAttempts = 3
	DefaultServerAddr      = "localhost:8080"
)

// Config stores repository-local settings. The remote table is persisted
// under [remote.<name>].
type Config struct {
	User    UserConfig              `toml:"user"`
	Remotes map[string]RemoteConfig `toml:"remote,omitempty"`
	Sync    SyncConfig              `toml:"sync"`
	Server  ServerConfig            `toml:"server"`
}

type UserConfig struct {
	Name string `toml:"name,omitempty"`
}

type RemoteConfig struct {
	URL string `toml:"url"`
}

// SyncConfig tunes the push/pull client.
type SyncConfig struct {
	Timeout     string `toml:"timeout,omitempty"`
	MaxAttempts int    `toml:"max_attempts,omitempty"`
	Compress    *bool  `toml:"compress,omitempty"`
}

type ServerConfig struct {
	Addr string `toml:"addr,omitempty"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{Remotes: make(map[string]RemoteConfig)}
}

// TimeoutDuration parses Sync.Timeout, falling back to DefaultSyncTimeout.
func (c SyncConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return DefaultSyncTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, failure.Errorf(failure.Validation, "sync.timeout %q: %v", c.Timeout, err)
	}
	if d <= 0 {
		return 0, failure.Errorf(failure.Validation, "sync.timeout %q: must be positive", c.Timeout)
	}
	return d, nil
}

// Attempts returns Sync.MaxAttempts or DefaultSyncMaxAttempts.
func (c SyncConfig) Attempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultSyncMaxAttempts
	}
	return c.MaxAttempts
}

// CompressEnabled reports whether sync bodies are zstd-compressed; on
// unless explicitly disabled.
func (c SyncConfig) CompressEnabled() bool {
	return c.Compress == nil || *c.Compress
}

// Address returns Server.Addr or DefaultServerAddr.
func (c ServerConfig) Address() string {
	if strings.TrimSpace(c.Addr) == "" {
		return DefaultServerAddr
	}
	return c.Addr
}

// LoadConfig decodes a config file. A missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, failure.Errorf(failure.Validation, "read config %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, failure.Errorf(failure.Validation, "read config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]RemoteConfig)
	}
	if _, err := cfg.Sync.TimeoutDuration(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg as TOML.
func WriteConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

func (r *Repo) configPath() string {
	return filepath.Join(r.MetaDir, configFileName)
}

// applyConfigLocked installs cfg and rebuilds the remote table from it.
func (r *Repo) applyConfigLocked(cfg Config) error {
	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	remotes := make(map[string]Remote, len(names))
	for _, name := range names {
		u := cfg.Remotes[name].URL
		if err := ValidateRemoteURL(u); err != nil {
			return fmt.Errorf("remote %q: %w", name, err)
		}
		remotes[name] = Remote{Name: name, URL: u}
	}
	r.Config = cfg
	r.remotes = remotes
	return nil
}

// configSnapshotLocked returns Config with the live remote table.
func (r *Repo) configSnapshotLocked() Config {
	cfg := r.Config
	cfg.Remotes = make(map[string]RemoteConfig, len(r.remotes))
	for name, rem := range r.remotes {
		cfg.Remotes[name] = RemoteConfig{URL: rem.URL}
	}
	return cfg
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: write: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", path, err)
	}
	return nil
}
