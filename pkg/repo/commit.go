package repo

import (
	"fmt"
	"time"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// Commit snapshots files as a new commit on top of HEAD.
//
//  1. BuildTree from files
//  2. Resolve HEAD to get the parent commit (if any)
//  3. Refuse when the parent's tree equals the new tree
//  4. Write the CommitObj
//  5. Advance the attached branch tip, or the detached HEAD
//
// Commit does not touch the filesystem.
func (r *Repo) Commit(message, author string, when time.Time, files []FileEntry) (object.Hash, error) {
	return r.CommitWithSigner(message, author, when, files, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is provided.
func (r *Repo) CommitWithSigner(message, author string, when time.Time, files []FileEntry, signer CommitSigner) (object.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	treeHash, err := r.BuildTree(files)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	parentHash := r.resolveHeadLocked()
	if parentHash != "" {
		parent, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			return "", fmt.Errorf("commit: read parent: %w", err)
		}
		if parent.TreeHash == treeHash {
			return "", failure.Errorf(failure.Conflict, "commit: nothing to commit on %s", r.head)
		}
		parents = append(parents, parentHash)
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: when.Unix(),
		Message:   message,
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	if name, ok := r.head.Branch(); ok {
		b, exists := r.branches[name]
		if !exists {
			return "", failure.Errorf(failure.NotFound, "commit: HEAD branch %q does not exist", name)
		}
		b.Tip = commitHash
	} else {
		r.head = Detached(commitHash)
	}
	return commitHash, nil
}
