package remote

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"
	"sync"
	"time"

	log "gopkg.in/src-d/go-log.v1"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/repo"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Logger log.Logger
	// Refresh runs under the push lock before each pull and push; the daemon
	// uses it to reload state saved by other processes.
	Refresh func() error
	// AfterPush runs after every accepted push, while pushes are still
	// serialized; the daemon uses it to save the repository.
	AfterPush func() error
}

// Server exposes a repository to pull and push clients:
//
//	GET  /pull?branch=<name>   branch and reachable commits, 404 if unknown
//	POST /push                 import commits, overwrite the branch
//	GET  /debug/vars           expvar counters
//
// Pulls run concurrently. Pushes are serialized, and each import plus ref
// update is atomic with respect to pulls.
type Server struct {
	repo      *repo.Repo
	logger    log.Logger
	refresh   func() error
	afterPush func() error
	pushMu    sync.Mutex
	mux       *http.ServeMux
}

// NewServer creates a Server for r.
func NewServer(r *repo.Repo, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Fields{"component": "server"})
	}
	s := &Server{
		repo:      r,
		logger:    opts.Logger,
		refresh:   opts.Refresh,
		afterPush: opts.AfterPush,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET "+pathPull, s.handlePull)
	s.mux.HandleFunc("POST "+pathPush, s.handlePush)
	s.mux.Handle("GET /debug/vars", expvar.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Infof("listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// GET /pull?branch=<name>
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	branch := strings.TrimSpace(r.URL.Query().Get("branch"))
	logger := s.logger.With(log.Fields{"op": "pull", "branch": branch})
	if branch == "" {
		s.writeError(w, r, logger, failure.Errorf(failure.Validation, "pull: branch parameter is required"))
		return
	}

	if err := s.refreshState(); err != nil {
		s.writeError(w, r, logger, err)
		return
	}
	info, bundles, err := s.repo.ExportBranch(branch)
	if err != nil {
		s.writeError(w, r, logger, err)
		return
	}
	s.writeJSON(w, r, logger, NewBranchPayload(branch, info, bundles))
	pullsServed.Add(1)
	requestServed(time.Since(start))
	logger.With(log.Fields{"commits": len(bundles), "duration": time.Since(start)}).Infof("pull served")
}

// POST /push
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := s.logger.With(log.Fields{"op": "push"})

	body, err := readBody(r.Body, r.Header.Get("Content-Encoding"), maxBodyBytes)
	if err != nil {
		s.writeError(w, r, logger, failure.Errorf(failure.Validation, "push: read body: %v", err))
		return
	}
	var payload BranchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeError(w, r, logger, failure.Errorf(failure.Validation, "push: decode body: %v", err))
		return
	}
	logger = logger.With(log.Fields{"branch": payload.Branch, "commits": len(payload.Commits)})

	req, err := payload.ImportRequest(payload.Branch, repo.OverwriteBranch)
	if err != nil {
		s.writeError(w, r, logger, err)
		return
	}

	s.pushMu.Lock()
	var res *repo.ImportResult
	if s.refresh != nil {
		err = s.refresh()
	}
	if err == nil {
		res, err = s.repo.ImportBranch(req)
	}
	if err == nil && s.afterPush != nil {
		err = s.afterPush()
	}
	s.pushMu.Unlock()
	if res != nil {
		objectsStored.Add(int64(res.ObjectsWritten))
	}
	if err != nil {
		s.writeError(w, r, logger, err)
		return
	}

	s.writeJSON(w, r, logger, &PushResponse{Branch: res.Branch, Tip: res.Tip})
	pushesAccepted.Add(1)
	requestServed(time.Since(start))
	logger.With(log.Fields{
		"tip":      res.Tip.Short(),
		"objects":  res.ObjectsWritten,
		"duration": time.Since(start),
	}).Infof("push accepted")
}

func (s *Server) refreshState() error {
	if s.refresh == nil {
		return nil
	}
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	return s.refresh()
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, logger log.Logger, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, r, logger, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	if isZstdEncoded(r.Header.Get("Accept-Encoding")) {
		if compressed, err := compressZstd(raw); err == nil {
			raw = compressed
			w.Header().Set("Content-Encoding", encodingZstd)
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		logger.Warningf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, logger log.Logger, err error) {
	requestsFailed.Add(1)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf(err, "request failed")
	} else {
		logger.Warningf("request rejected: %v", err)
	}
	raw, _ := json.Marshal(newRemoteError(err))
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func statusFor(err error) int {
	switch failure.CategoryOf(err) {
	case failure.NotFound:
		return http.StatusNotFound
	case failure.Validation, failure.Corrupt:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
