package remote

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
)

const (
	// ProtocolVersion is the current sync protocol version.
	ProtocolVersion = "1"

	// ClientCapabilities lists all capabilities this client supports.
	ClientCapabilities = "zstd"

	headerProtocol     = "Kbgit-Protocol"
	headerCapabilities = "Kbgit-Capabilities"

	contentTypeJSON = "application/json"

	pathPull = "/pull"
	pathPush = "/push"
)

// Capabilities represents a set of protocol capabilities.
type Capabilities struct {
	set map[string]struct{}
}

// ParseCapabilities parses a comma-separated capability string.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string]struct{})}
	for _, cap := range strings.Split(raw, ",") {
		cap = strings.TrimSpace(cap)
		if cap != "" {
			caps.set[cap] = struct{}{}
		}
	}
	return caps
}

// Has returns true if the capability is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// String returns a sorted comma-separated capability string.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k := range c.set {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// BranchInfo is a branch on the wire.
type BranchInfo struct {
	Tip     object.Hash `json:"tip,omitempty"`
	Created object.Hash `json:"created,omitempty"`
}

// Commit is one commit on the wire with its snapshot inlined.
type Commit struct {
	Hash      object.Hash          `json:"hash"`
	Tree      object.Hash          `json:"tree"`
	Parents   []object.Hash        `json:"parents"`
	Author    string               `json:"author"`
	Timestamp int64                `json:"timestamp"`
	Message   string               `json:"message"`
	Signature string               `json:"signature,omitempty"`
	Root      *object.TreeSnapshot `json:"root"`
}

// BranchPayload is the pull response and the push request body: a branch
// and every commit reachable from its tip.
type BranchPayload struct {
	Branch  string     `json:"branch"`
	Info    BranchInfo `json:"info"`
	Commits []Commit   `json:"commits"`
}

// PushResponse acknowledges a push.
type PushResponse struct {
	Branch string      `json:"branch"`
	Tip    object.Hash `json:"tip"`
}

// NewBranchPayload converts exported commit bundles to their wire form.
func NewBranchPayload(branch string, info repo.Branch, bundles []repo.CommitBundle) *BranchPayload {
	p := &BranchPayload{
		Branch:  branch,
		Info:    BranchInfo{Tip: info.Tip, Created: info.Created},
		Commits: make([]Commit, 0, len(bundles)),
	}
	for _, b := range bundles {
		parents := b.Commit.Parents
		if parents == nil {
			parents = []object.Hash{}
		}
		p.Commits = append(p.Commits, Commit{
			Hash:      b.Hash,
			Tree:      b.Commit.TreeHash,
			Parents:   parents,
			Author:    b.Commit.Author,
			Timestamp: b.Commit.Timestamp,
			Message:   b.Commit.Message,
			Signature: b.Commit.Signature,
			Root:      b.Root,
		})
	}
	return p
}

// ImportRequest validates the identifiers in the payload and converts it
// for repo.ImportBranch. Content hashes are verified by the import itself.
func (p *BranchPayload) ImportRequest(dest string, policy repo.RefPolicy) (repo.ImportRequest, error) {
	if err := validateOptionalHash("tip", p.Info.Tip); err != nil {
		return repo.ImportRequest{}, err
	}
	if err := validateOptionalHash("created", p.Info.Created); err != nil {
		return repo.ImportRequest{}, err
	}
	req := repo.ImportRequest{
		Branch:  dest,
		Info:    repo.Branch{Tip: p.Info.Tip, Created: p.Info.Created},
		Commits: make([]repo.CommitBundle, 0, len(p.Commits)),
		Policy:  policy,
	}
	for i, c := range p.Commits {
		if _, err := object.ParseHash(string(c.Hash)); err != nil {
			return repo.ImportRequest{}, fmt.Errorf("commit %d: %w", i, err)
		}
		req.Commits = append(req.Commits, repo.CommitBundle{
			Hash: c.Hash,
			Commit: &object.CommitObj{
				TreeHash:  c.Tree,
				Parents:   c.Parents,
				Author:    c.Author,
				Timestamp: c.Timestamp,
				Signature: c.Signature,
				Message:   c.Message,
			},
			Root: c.Root,
		})
	}
	return req, nil
}

func validateOptionalHash(field string, h object.Hash) error {
	if h == "" {
		return nil
	}
	if _, err := object.ParseHash(string(h)); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// RemoteError is a structured error from the remote server.
type RemoteError struct {
	Code    string            `json:"code"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// newRemoteError describes err for the wire, keeping its category as code.
func newRemoteError(err error) *RemoteError {
	code := string(failure.CategoryOf(err))
	return &RemoteError{Code: code, Message: err.Error(), Details: failure.DetailsOf(err)}
}

// tryParseRemoteError attempts to parse a JSON error response body.
func tryParseRemoteError(body []byte) *RemoteError {
	var re RemoteError
	if err := json.Unmarshal(body, &re); err != nil {
		return nil
	}
	if re.Message == "" && re.Code == "" {
		return nil
	}
	return &re
}
