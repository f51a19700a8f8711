package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "gopkg.in/src-d/go-log.v1"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/repo"
)

// maxBodyBytes bounds every request and response body after decompression.
const maxBodyBytes = 256 << 20

// ClientOptions configures the sync client.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 30s)
	MaxAttempts int           // retry attempts (default 3)
	Compress    bool          // zstd-encode request bodies and accept zstd responses
	Logger      log.Logger
}

// Client talks to a Server over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	compress    bool
	logger      log.Logger
}

// NewClient creates a client for the server at remoteURL.
// Zero-value fields in opts receive defaults.
func NewClient(remoteURL string, opts ClientOptions) (*Client, error) {
	if err := repo.ValidateRemoteURL(remoteURL); err != nil {
		return nil, err
	}
	u, _ := url.Parse(strings.TrimSpace(remoteURL))
	u.RawQuery = ""
	u.Fragment = ""

	if opts.Timeout <= 0 {
		opts.Timeout = repo.DefaultSyncTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = repo.DefaultSyncMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Fields{"remote": u.Host})
	}

	return &Client{
		baseURL:     strings.TrimRight(u.String(), "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		compress:    opts.Compress,
		logger:      opts.Logger,
	}, nil
}

// NewClientForRemote creates a client for a named remote of r, configured
// from r's [sync] settings.
func NewClientForRemote(r *repo.Repo, name string, logger log.Logger) (*Client, error) {
	rem, err := r.Remote(name)
	if err != nil {
		return nil, err
	}
	timeout, err := r.Config.Sync.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.Fields{"remote": name})
	}
	return NewClient(rem.URL, ClientOptions{
		Timeout:     timeout,
		MaxAttempts: r.Config.Sync.Attempts(),
		Compress:    r.Config.Sync.CompressEnabled(),
		Logger:      logger,
	})
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Pull fetches a branch and every commit reachable from its tip. An unknown
// branch is a NotFound error; any other failure is a Transport error.
func (c *Client) Pull(ctx context.Context, branch string) (*BranchPayload, error) {
	q := url.Values{"branch": {branch}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathPull+"?"+q.Encode(), nil)
	if err != nil {
		return nil, failure.Errorf(failure.Transport, "pull %q: %v", branch, err)
	}

	var payload BranchPayload
	if err := c.do(req, &payload); err != nil {
		return nil, fmt.Errorf("pull %q: %w", branch, err)
	}
	if payload.Branch != branch {
		return nil, failure.Errorf(failure.Transport, "pull %q: server answered for branch %q", branch, payload.Branch)
	}
	return &payload, nil
}

// Push sends a branch and its commits. The server overwrites its branch
// with the pushed tip.
func (c *Client) Push(ctx context.Context, payload *BranchPayload) (*PushResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("push %q: encode: %w", payload.Branch, err)
	}
	encoding := ""
	if c.compress {
		if raw, err = compressZstd(raw); err != nil {
			return nil, fmt.Errorf("push %q: compress: %w", payload.Branch, err)
		}
		encoding = encodingZstd
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathPush, bytes.NewReader(raw))
	if err != nil {
		return nil, failure.Errorf(failure.Transport, "push %q: %v", payload.Branch, err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	var resp PushResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("push %q: %w", payload.Branch, err)
	}
	return &resp, nil
}

// do sends req with retries and decodes a 200 JSON response into out.
// Failures are classified: a 404 carrying a not-found RemoteError is
// NotFound, everything else Transport.
func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set(headerProtocol, ProtocolVersion)
	if c.compress {
		req.Header.Set(headerCapabilities, ClientCapabilities)
		req.Header.Set("Accept-Encoding", encodingZstd)
	}

	start := time.Now()
	resp, err := retryDo(c.httpClient, req, c.maxAttempts)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warningf("%s %s failed after %d attempts: %v", req.Method, req.URL.Path, c.maxAttempts, err)
		}
		return failure.Errorf(failure.Transport, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body, resp.Header.Get("Content-Encoding"), maxBodyBytes)
	if err != nil {
		return failure.Errorf(failure.Transport, "%s %s: read response: %v", req.Method, req.URL.Path, err)
	}

	logger := c.logger.With(log.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		re := tryParseRemoteError(body)
		if re != nil {
			msg = re.Error()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		logger.Debugf("remote request failed: %s", msg)
		// A bare 404 may come from something that is not a kbgit server.
		if resp.StatusCode == http.StatusNotFound && re != nil && re.Code == string(failure.NotFound) {
			return failure.Detailed(failure.NotFound, "remote: "+msg, re.Details)
		}
		return failure.Errorf(failure.Transport, "remote request failed (%s %s, status %d): %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, contentTypeJSON) {
		return failure.Errorf(failure.Transport, "unexpected content type %q from %s %s", ct, req.Method, req.URL.Path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return failure.Errorf(failure.Transport, "decode %s %s response: %v", req.Method, req.URL.Path, err)
	}
	logger.Debugf("remote request finished")
	return nil
}
