package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
	"github.com/odvcencio/kbgit/pkg/repo"
)

func fileList(kv ...string) []repo.FileEntry {
	out := make([]repo.FileEntry, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, repo.FileEntry{Path: kv[i], Content: []byte(kv[i+1])})
	}
	return out
}

func commitAt(t *testing.T, r *repo.Repo, msg string, sec int64, files []repo.FileEntry) object.Hash {
	t.Helper()
	h, err := r.Commit(msg, "K", time.Unix(sec, 0), files)
	if err != nil {
		t.Fatalf("Commit(%q): %v", msg, err)
	}
	return h
}

// chain commits c1 <- c2 <- c3 on master.
func chain(t *testing.T, r *repo.Repo) []object.Hash {
	t.Helper()
	return []object.Hash{
		commitAt(t, r, "c1", 1, fileList("a.txt", "a")),
		commitAt(t, r, "c2", 2, fileList("a.txt", "a", "src/b.go", "b")),
		commitAt(t, r, "c3", 3, fileList("a.txt", "a2", "src/b.go", "b")),
	}
}

func newTestServer(t *testing.T, r *repo.Repo, opts ServerOptions) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(r, opts))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, url string, compress bool) *Client {
	t.Helper()
	c, err := NewClient(url, ClientOptions{Timeout: 5 * time.Second, MaxAttempts: 1, Compress: compress})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestPull_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		compress := compress
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			server := repo.New()
			ids := chain(t, server)
			ts := newTestServer(t, server, ServerOptions{})

			local := repo.New()
			res, err := Pull(context.Background(), newTestClient(t, ts.URL, compress), local, "origin", "master")
			if err != nil {
				t.Fatalf("Pull: %v", err)
			}
			if res.Tip != ids[2] {
				t.Fatalf("pulled tip = %s, want %s", res.Tip, ids[2])
			}
			tracking, err := local.Branch("origin/master")
			if err != nil {
				t.Fatalf("Branch(origin/master): %v", err)
			}
			if tracking.Tip != ids[2] {
				t.Fatalf("origin/master.Tip = %s, want %s", tracking.Tip, ids[2])
			}
			if diff := cmp.Diff(server.Store.Records(), local.Store.Records()); diff != "" {
				t.Fatalf("object graphs differ (-server +local):\n%s", diff)
			}
			history, err := local.History(ids[2], 0)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]object.Hash, len(history))
			for i, e := range history {
				got[i] = e.Hash
			}
			if diff := cmp.Diff([]object.Hash{ids[2], ids[1], ids[0]}, got); diff != "" {
				t.Fatalf("chain (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPull_SecondPullMovesCreated(t *testing.T) {
	server := repo.New()
	ids := chain(t, server)
	ts := newTestServer(t, server, ServerOptions{})
	c := newTestClient(t, ts.URL, true)

	local := repo.New()
	if _, err := Pull(context.Background(), c, local, "origin", "master"); err != nil {
		t.Fatal(err)
	}
	c4 := commitAt(t, server, "c4", 4, fileList("a.txt", "a3"))
	if _, err := Pull(context.Background(), c, local, "origin", "master"); err != nil {
		t.Fatal(err)
	}
	got, err := local.Branch("origin/master")
	if err != nil {
		t.Fatal(err)
	}
	if want := (repo.Branch{Tip: c4, Created: ids[2]}); got != want {
		t.Fatalf("origin/master = %+v, want %+v", got, want)
	}
}

func TestPull_UnknownBranchIsNotFound(t *testing.T) {
	ts := newTestServer(t, repo.New(), ServerOptions{})
	local := repo.New()
	_, err := Pull(context.Background(), newTestClient(t, ts.URL, false), local, "origin", "nope")
	if !failure.Is(err, failure.NotFound) {
		t.Fatalf("Pull = %v, want not-found", err)
	}
	if got := failure.DetailsOf(err)["branch"]; got != "nope" {
		t.Fatalf("not-found details: branch = %q, want nope", got)
	}
	if _, err := local.Branch("origin/nope"); err == nil {
		t.Fatal("tracking branch created for unknown remote branch")
	}
}

func TestPull_TransportErrors(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	wrongType := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer wrongType.Close()

	foreign := httptest.NewServer(http.NotFoundHandler())
	defer foreign.Close()

	for name, url := range map[string]string{
		"server error":      broken.URL,
		"connection failed": closedURL,
		"wrong type":        wrongType.URL,
		"foreign 404":       foreign.URL,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Pull(context.Background(), newTestClient(t, url, false), repo.New(), "origin", "master")
			if !failure.Is(err, failure.Transport) {
				t.Fatalf("Pull = %v, want transport", err)
			}
		})
	}
}

func TestPush_OverwritesServerBranch(t *testing.T) {
	server := repo.New()
	serverOwn := commitAt(t, server, "server only", 1, fileList("s", "s"))
	saves := 0
	ts := newTestServer(t, server, ServerOptions{AfterPush: func() error { saves++; return nil }})

	local := repo.New()
	ids := chain(t, local)
	for _, compress := range []bool{true, false} {
		resp, err := Push(context.Background(), newTestClient(t, ts.URL, compress), local, "master")
		if err != nil {
			t.Fatalf("Push(compress=%v): %v", compress, err)
		}
		if resp.Tip != ids[2] || resp.Branch != "master" {
			t.Fatalf("PushResponse = %+v", resp)
		}
	}
	if saves != 2 {
		t.Fatalf("AfterPush ran %d times, want 2", saves)
	}
	master, err := server.Branch("master")
	if err != nil {
		t.Fatal(err)
	}
	if master.Tip != ids[2] {
		t.Fatalf("server master.Tip = %s, want %s (was %s)", master.Tip, ids[2], serverOwn)
	}
	for _, id := range ids {
		if !server.Store.Has(id) {
			t.Errorf("server missing pushed commit %s", id.Short())
		}
	}

	if _, err := Push(context.Background(), newTestClient(t, ts.URL, false), local, "feature"); !failure.Is(err, failure.NotFound) {
		t.Fatalf("Push(unknown local branch) = %v, want not-found", err)
	}
}

func TestPush_RejectsCorruptPayload(t *testing.T) {
	server := repo.New()
	ts := newTestServer(t, server, ServerOptions{})

	local := repo.New()
	chain(t, local)
	info, bundles, err := local.ExportBranch("master")
	if err != nil {
		t.Fatal(err)
	}
	payload := NewBranchPayload("master", info, bundles)
	payload.Commits[0].Message = "forged"

	_, err = newTestClient(t, ts.URL, false).Push(context.Background(), payload)
	if !failure.Is(err, failure.Transport) {
		t.Fatalf("Push = %v, want transport", err)
	}
	if master, _ := server.Branch("master"); master.Tip != "" {
		t.Fatalf("server master moved to %s after corrupt push", master.Tip)
	}
}

func TestServer_Status(t *testing.T) {
	ts := newTestServer(t, repo.New(), ServerOptions{})
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/pull", http.StatusBadRequest},
		{http.MethodGet, "/pull?branch=missing", http.StatusNotFound},
		{http.MethodGet, "/pull?branch=master", http.StatusOK},
		{http.MethodGet, "/debug/vars", http.StatusOK},
		{http.MethodGet, "/push", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		req, _ := http.NewRequest(tc.method, ts.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", ClientOptions{}); !failure.Is(err, failure.Validation) {
		t.Fatalf("NewClient = %v, want validation", err)
	}
}

func TestServer_RefreshRunsBeforeEachRequest(t *testing.T) {
	server := repo.New()
	var refreshes int32
	var failRefresh atomic.Bool
	ts := newTestServer(t, server, ServerOptions{Refresh: func() error {
		atomic.AddInt32(&refreshes, 1)
		if failRefresh.Load() {
			return errors.New("state file unreadable")
		}
		return nil
	}})

	local := repo.New()
	ids := chain(t, local)
	c := newTestClient(t, ts.URL, false)
	if _, err := Push(context.Background(), c, local, "master"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := Pull(context.Background(), c, repo.New(), "origin", "master"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if n := atomic.LoadInt32(&refreshes); n != 2 {
		t.Fatalf("refreshes = %d, want 2", n)
	}

	failRefresh.Store(true)
	commitAt(t, local, "c4", 4, fileList("a.txt", "a4"))
	if _, err := Push(context.Background(), c, local, "master"); !failure.Is(err, failure.Transport) {
		t.Fatalf("Push with failing refresh = %v, want transport", err)
	}
	if tip := mustTip(t, server, "master"); tip != ids[2] {
		t.Fatalf("server tip = %s, want %s", tip, ids[2])
	}
}

func mustTip(t *testing.T, r *repo.Repo, name string) object.Hash {
	t.Helper()
	b, err := r.Branch(name)
	if err != nil {
		t.Fatalf("Branch(%q): %v", name, err)
	}
	return b.Tip
}
