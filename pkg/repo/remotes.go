package repo

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// Remote is a named URL used by push and pull.
type Remote struct {
	Name string
	URL  string
}

// ValidateRemoteURL requires an absolute http(s) URL.
func ValidateRemoteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return failure.Errorf(failure.Validation, "remote URL %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return failure.Errorf(failure.Validation, "remote URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return failure.Errorf(failure.Validation, "remote URL %q: host is required", raw)
	}
	return nil
}

// AddRemote registers a remote. Adding an existing name is a conflict.
func (r *Repo) AddRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return failure.Errorf(failure.Validation, "add remote: remote name is required")
	}
	if strings.ContainsAny(name, "/ \t\n") {
		return failure.Errorf(failure.Validation, "add remote: invalid remote name %q", name)
	}
	if err := ValidateRemoteURL(remoteURL); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.remotes[name]; ok {
		return failure.Errorf(failure.Conflict, "add remote: remote %q already exists", name)
	}
	r.remotes[name] = Remote{Name: name, URL: strings.TrimSpace(remoteURL)}
	return nil
}

// RemoveRemote deletes a remote by name.
func (r *Repo) RemoveRemote(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.remotes[name]; !ok {
		return notFoundRemote("remove remote", name)
	}
	delete(r.remotes, name)
	return nil
}

// Remote looks up a remote by name.
func (r *Repo) Remote(name string) (Remote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rem, ok := r.remotes[name]
	if !ok {
		return Remote{}, notFoundRemote("remote", name)
	}
	return rem, nil
}

// Remotes returns all remotes sorted by name.
func (r *Repo) Remotes() []Remote {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Remote, 0, len(r.remotes))
	for _, rem := range r.remotes {
		out = append(out, rem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func notFoundRemote(op, name string) error {
	return failure.Detailed(failure.NotFound, fmt.Sprintf("%s: remote %q not found", op, name), map[string]string{"remote": name})
}
