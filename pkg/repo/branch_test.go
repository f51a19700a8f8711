package repo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

func TestNew_StartsOnEmptyMaster(t *testing.T) {
	r := New()
	if name, ok := r.HeadState().Branch(); !ok || name != DefaultBranch {
		t.Fatalf("HEAD = %v, want attached to %s", r.HeadState(), DefaultBranch)
	}
	if h := r.ResolveHead(); h != "" {
		t.Fatalf("ResolveHead = %q, want empty", h)
	}
	if diff := cmp.Diff([]string{"master"}, r.ListBranches()); diff != "" {
		t.Fatalf("branches (-want +got):\n%s", diff)
	}
}

func TestBranch_CreateListDelete(t *testing.T) {
	r := New()
	c0 := mustCommit(t, r, "root", t1, files("a.txt", "a"))

	if err := r.CreateBranch("feature", c0); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if got := r.CurrentBranch(); got != "feature" {
		t.Fatalf("CurrentBranch = %q, want feature", got)
	}
	want := []BranchInfo{
		{Name: "feature", Branch: Branch{Tip: c0, Created: c0}, Current: true},
		{Name: "master", Branch: Branch{Tip: c0}},
	}
	if diff := cmp.Diff(want, r.Branches()); diff != "" {
		t.Fatalf("Branches (-want +got):\n%s", diff)
	}

	if _, err := r.CheckoutBranch("master"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if diff := cmp.Diff([]string{"master"}, r.ListBranches()); diff != "" {
		t.Fatalf("branches after delete (-want +got):\n%s", diff)
	}
}

func TestBranch_Errors(t *testing.T) {
	r := New()
	c0 := mustCommit(t, r, "root", t1, files("a.txt", "a"))

	tests := []struct {
		name string
		err  error
		want failure.Category
	}{
		{"create existing", r.CreateBranch("master", c0), failure.Conflict},
		{"create at unknown commit", r.CreateBranch("x", object.Hash(fakeHash("e"))), failure.NotFound},
		{"create invalid name", r.CreateBranch("a..b", c0), failure.Validation},
		{"delete current", r.DeleteBranch("master"), failure.Conflict},
		{"delete missing", r.DeleteBranch("nope"), failure.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failure.CategoryOf(tt.err); got != tt.want {
				t.Fatalf("category = %q (%v), want %q", got, tt.err, tt.want)
			}
		})
	}
	if _, err := r.CheckoutBranch("nope"); !failure.Is(err, failure.NotFound) {
		t.Fatalf("CheckoutBranch(nope) = %v, want not-found", err)
	}
	if _, err := r.CheckoutCommit(object.Hash(fakeHash("e"))); !failure.Is(err, failure.NotFound) {
		t.Fatalf("CheckoutCommit(unknown) = %v, want not-found", err)
	}
}

func TestBranch_CreateEmpty(t *testing.T) {
	r := New()
	if err := r.CreateBranch("empty", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if h := r.ResolveHead(); h != "" {
		t.Fatalf("ResolveHead = %q, want empty", h)
	}
	h := mustCommit(t, r, "first", t1, files("x", "x"))
	if got := mustBranch(t, r, "empty"); got.Tip != h || got.Created != "" {
		t.Fatalf("empty branch = %+v", got)
	}
}

func TestCheckoutCommit_ReattachesToBranchTip(t *testing.T) {
	r := New()
	first := mustCommit(t, r, "one", t1, files("a.txt", "1"))
	second := mustCommit(t, r, "two", t2, files("a.txt", "2"))

	if err := r.CreateBranch("zeta", second); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CheckoutCommit(first); err != nil {
		t.Fatal(err)
	}
	if !r.HeadState().IsDetached() {
		t.Fatalf("HEAD = %v, want detached", r.HeadState())
	}

	head, err := r.CheckoutCommit(second)
	if err != nil {
		t.Fatalf("CheckoutCommit: %v", err)
	}
	if name, ok := head.Branch(); !ok || name != "master" {
		t.Fatalf("HEAD = %v, want attached to master", head)
	}
}

func TestCheckout_Targets(t *testing.T) {
	r := New()
	first := mustCommit(t, r, "one", t1, files("a.txt", "1"))
	second := mustCommit(t, r, "two", t2, files("a.txt", "2"))
	third := mustCommit(t, r, "three", t3, files("a.txt", "3"))

	head, id, err := r.Checkout("HEAD~2")
	if err != nil {
		t.Fatalf("Checkout(HEAD~2): %v", err)
	}
	if id != first || !head.IsDetached() {
		t.Fatalf("Checkout(HEAD~2) = %v %s, want detached at %s", head, id, first)
	}

	head, id, err = r.Checkout(string(second))
	if err != nil {
		t.Fatalf("Checkout(id): %v", err)
	}
	if id != second || !head.IsDetached() {
		t.Fatalf("Checkout(id) = %v %s", head, id)
	}

	head, id, err = r.Checkout("master")
	if err != nil {
		t.Fatalf("Checkout(master): %v", err)
	}
	if name, _ := head.Branch(); name != "master" || id != third {
		t.Fatalf("Checkout(master) = %v %s", head, id)
	}

	if _, _, err := r.Checkout("short"); !failure.Is(err, failure.Validation) {
		t.Fatalf("Checkout(short) = %v, want validation", err)
	}
}

func TestCheckout_HeadKeepsAttachedBranch(t *testing.T) {
	r := New()
	tip := mustCommit(t, r, "one", t1, files("a.txt", "1"))
	if err := r.CreateBranch("dev", tip); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CheckoutBranch("master"); err != nil {
		t.Fatal(err)
	}

	head, id, err := r.Checkout("HEAD")
	if err != nil {
		t.Fatalf("Checkout(HEAD): %v", err)
	}
	if name, ok := head.Branch(); !ok || name != "master" || id != tip {
		t.Fatalf("Checkout(HEAD) = %v %s, want on master at %s", head, id, tip)
	}
	if got := r.CurrentBranch(); got != "master" {
		t.Fatalf("CurrentBranch = %q, want master", got)
	}
}

func TestHead_ZeroValueIsUnset(t *testing.T) {
	var zero Head
	if zero.IsDetached() {
		t.Fatal("zero Head reports detached")
	}
	if _, ok := zero.Branch(); ok {
		t.Fatal("zero Head reports attached")
	}
	if _, ok := zero.Commit(); ok {
		t.Fatal("zero Head reports a commit")
	}

	r := New()
	mustCommit(t, r, "one", t1, files("a.txt", "1"))
	head, err := r.CheckoutCommit(object.Hash(fakeHash("e")))
	if !failure.Is(err, failure.NotFound) {
		t.Fatalf("CheckoutCommit(unknown) = %v, want not-found", err)
	}
	if head.IsDetached() || head.String() != "unset" {
		t.Fatalf("head on error = %v, want unset", head)
	}
	if name, ok := r.HeadState().Branch(); !ok || name != "master" {
		t.Fatalf("HEAD moved on failed checkout: %v", r.HeadState())
	}
}

func TestHeadAncestor(t *testing.T) {
	r := New()
	if _, err := r.HeadAncestor(0); !failure.Is(err, failure.NotFound) {
		t.Fatalf("HeadAncestor on empty = %v, want not-found", err)
	}
	first := mustCommit(t, r, "one", t1, files("a.txt", "1"))
	second := mustCommit(t, r, "two", t2, files("a.txt", "2"))

	for n, want := range []object.Hash{second, first} {
		got, err := r.HeadAncestor(n)
		if err != nil {
			t.Fatalf("HeadAncestor(%d): %v", n, err)
		}
		if got != want {
			t.Errorf("HeadAncestor(%d) = %s, want %s", n, got, want)
		}
	}
	if _, err := r.HeadAncestor(2); !failure.Is(err, failure.NotFound) {
		t.Fatalf("HeadAncestor(2) = %v, want not-found", err)
	}
	if _, err := r.HeadAncestor(-1); !failure.Is(err, failure.Validation) {
		t.Fatalf("HeadAncestor(-1) = %v, want validation", err)
	}
}

func TestValidateBranchName(t *testing.T) {
	for _, name := range []string{"main", "feature/x", "origin/main", "v1.2"} {
		if err := ValidateBranchName(name); err != nil {
			t.Errorf("ValidateBranchName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "HEAD", "-x", "a b", "a..b", "a~1", "/a", "a/", "a//b"} {
		if err := ValidateBranchName(name); !failure.Is(err, failure.Validation) {
			t.Errorf("ValidateBranchName(%q) = %v, want validation", name, err)
		}
	}
}

func fakeHash(c string) string {
	out := make([]byte, 0, object.HashHexLen)
	for len(out) < object.HashHexLen {
		out = append(out, c...)
	}
	return string(out[:object.HashHexLen])
}
