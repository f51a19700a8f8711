package remote

import (
	"context"
	"fmt"

	"github.com/odvcencio/kbgit/pkg/repo"
)

// TrackingBranch names the local branch that mirrors branch of remote.
func TrackingBranch(remoteName, branch string) string {
	return remoteName + "/" + branch
}

// Pull fetches branch from the server behind c and imports it into r as
// "{remoteName}/{branch}". If ctx is cancelled before the import starts the
// tracking branch is left untouched.
func Pull(ctx context.Context, c *Client, r *repo.Repo, remoteName, branch string) (*repo.ImportResult, error) {
	payload, err := c.Pull(ctx, branch)
	if err != nil {
		return nil, err
	}
	dest := TrackingBranch(remoteName, branch)
	req, err := payload.ImportRequest(dest, repo.TrackRemote)
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", branch, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pull %q: %w", branch, err)
	}
	res, err := r.ImportBranch(req)
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", branch, err)
	}
	c.logger.Infof("pulled %s into %s at %s (%d commits new)", branch, dest, res.Tip.Short(), res.CommitsWritten)
	return res, nil
}

// Push sends the local branch and every commit reachable from its tip to the
// server behind c, which sets its own branch of the same name to our tip.
func Push(ctx context.Context, c *Client, r *repo.Repo, branch string) (*PushResponse, error) {
	info, bundles, err := r.ExportBranch(branch)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	resp, err := c.Push(ctx, NewBranchPayload(branch, info, bundles))
	if err != nil {
		return nil, err
	}
	c.logger.Infof("pushed %s at %s (%d commits)", branch, resp.Tip.Short(), len(bundles))
	return resp, nil
}
