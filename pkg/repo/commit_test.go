package repo

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

var (
	t1 = time.Unix(1700000000, 0)
	t2 = time.Unix(1700000100, 0)
	t3 = time.Unix(1700000200, 0)
)

// files builds a file list from alternating path, content pairs.
func files(kv ...string) []FileEntry {
	out := make([]FileEntry, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, FileEntry{Path: kv[i], Content: []byte(kv[i+1])})
	}
	return out
}

func mustCommit(t *testing.T, r *Repo, msg string, when time.Time, fs []FileEntry) object.Hash {
	t.Helper()
	h, err := r.Commit(msg, "K", when, fs)
	if err != nil {
		t.Fatalf("Commit(%q): %v", msg, err)
	}
	return h
}

func mustBranch(t *testing.T, r *Repo, name string) Branch {
	t.Helper()
	b, err := r.Branch(name)
	if err != nil {
		t.Fatalf("Branch(%q): %v", name, err)
	}
	return b
}

func TestCommit_ConcreteScenario(t *testing.T) {
	r := New()

	first, err := r.Commit("add a", "K", t1, files("a.txt", "aaa"))
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if got := r.Store.Count(object.TypeBlob); got != 1 {
		t.Fatalf("blob count = %d, want 1", got)
	}
	blob, err := r.Store.ReadBlob(object.HashObject(object.TypeBlob, []byte("aaa")))
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "aaa" {
		t.Fatalf("blob = %q, want %q", blob.Data, "aaa")
	}
	c1, err := r.Store.ReadCommit(first)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c1.Parents) != 0 {
		t.Fatalf("first commit parents = %v, want none", c1.Parents)
	}
	if c1.Author != "K" || c1.Timestamp != t1.Unix() {
		t.Fatalf("first commit author/timestamp = %q/%d", c1.Author, c1.Timestamp)
	}
	master := mustBranch(t, r, "master")
	if master.Tip != first {
		t.Fatalf("master.Tip = %s, want %s", master.Tip, first)
	}

	second, err := r.Commit("add b", "K", t2, files("a.txt", "aaa", "b.txt", "bbb"))
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	c2, err := r.Store.ReadCommit(second)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{first}, c2.Parents); diff != "" {
		t.Fatalf("second commit parents (-want +got):\n%s", diff)
	}
	tree, err := r.Store.ReadTree(c2.TreeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 2 {
		t.Fatalf("tree entries = %d, want 2", len(tree.Entries))
	}
	for _, e := range tree.Entries {
		if e.Kind != object.EntryBlob {
			t.Errorf("entry %q kind = %v, want blob", e.Name, e.Kind)
		}
	}
	after := mustBranch(t, r, "master")
	if after.Tip != second {
		t.Fatalf("master.Tip = %s, want %s", after.Tip, second)
	}
	if after.Created != master.Created {
		t.Fatalf("master.Created changed from %q to %q", master.Created, after.Created)
	}
}

func TestCommit_DeduplicatesBlobs(t *testing.T) {
	r := New()
	mustCommit(t, r, "one", t1, files("a.txt", "same"))
	mustCommit(t, r, "two", t2, files("a.txt", "same", "copy.txt", "same"))
	mustCommit(t, r, "three", t3, files("a.txt", "same", "dir/copy.txt", "same"))

	if got := r.Store.Count(object.TypeBlob); got != 1 {
		t.Fatalf("blob count = %d, want 1", got)
	}
	if got := r.Store.Count(object.TypeCommit); got != 3 {
		t.Fatalf("commit count = %d, want 3", got)
	}
}

func TestCommit_NothingToCommit(t *testing.T) {
	r := New()
	tip := mustCommit(t, r, "one", t1, files("a.txt", "aaa", "d/b.txt", "bbb"))
	before := r.Store.Records()

	_, err := r.Commit("again", "K", t2, files("d/b.txt", "bbb", "a.txt", "aaa"))
	if !failure.Is(err, failure.Conflict) {
		t.Fatalf("Commit = %v, want conflict", err)
	}
	if diff := cmp.Diff(before, r.Store.Records()); diff != "" {
		t.Fatalf("store changed (-before +after):\n%s", diff)
	}
	if got := mustBranch(t, r, "master").Tip; got != tip {
		t.Fatalf("master.Tip = %s, want %s", got, tip)
	}
}

func TestCommit_EmptyTreeFirstCommit(t *testing.T) {
	r := New()
	h := mustCommit(t, r, "empty", t1, nil)
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if c.TreeHash != object.HashObject(object.TypeTree, nil) {
		t.Fatalf("tree = %s, want empty tree", c.TreeHash)
	}
	if _, err := r.Commit("empty again", "K", t2, nil); !failure.Is(err, failure.Conflict) {
		t.Fatalf("second empty commit = %v, want conflict", err)
	}
}

func TestCommit_DetachedHeadAdvancesHeadOnly(t *testing.T) {
	r := New()
	first := mustCommit(t, r, "one", t1, files("a.txt", "1"))
	second := mustCommit(t, r, "two", t2, files("a.txt", "2"))

	head, err := r.CheckoutCommit(first)
	if err != nil {
		t.Fatalf("CheckoutCommit: %v", err)
	}
	if id, ok := head.Commit(); !ok || id != first {
		t.Fatalf("HEAD = %v, want detached at %s", head, first)
	}

	third := mustCommit(t, r, "three", t3, files("a.txt", "3"))
	if id, ok := r.HeadState().Commit(); !ok || id != third {
		t.Fatalf("HEAD = %v, want detached at %s", r.HeadState(), third)
	}
	if got := mustBranch(t, r, "master").Tip; got != second {
		t.Fatalf("master.Tip = %s, want %s", got, second)
	}
	c, err := r.Store.ReadCommit(third)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]object.Hash{first}, c.Parents); diff != "" {
		t.Fatalf("parents (-want +got):\n%s", diff)
	}
}

func TestCommitWithSigner(t *testing.T) {
	r := New()
	var signed []byte
	h, err := r.CommitWithSigner("signed", "K", t1, files("a.txt", "a"), func(payload []byte) (string, error) {
		signed = append([]byte(nil), payload...)
		return "sig-1", nil
	})
	if err != nil {
		t.Fatalf("CommitWithSigner: %v", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if c.Signature != "sig-1" {
		t.Fatalf("Signature = %q, want sig-1", c.Signature)
	}
	if diff := cmp.Diff(string(object.CommitSigningPayload(c)), string(signed)); diff != "" {
		t.Fatalf("signed payload (-want +got):\n%s", diff)
	}
}
