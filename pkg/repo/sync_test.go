package repo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/kbgit/pkg/failure"
	"github.com/odvcencio/kbgit/pkg/object"
)

func exportMaster(t *testing.T, r *Repo) (Branch, []CommitBundle) {
	t.Helper()
	info, bundles, err := r.ExportBranch("master")
	if err != nil {
		t.Fatalf("ExportBranch: %v", err)
	}
	return info, bundles
}

func TestImportBranch_TrackRemoteRoundTrip(t *testing.T) {
	src := New()
	c1 := mustCommit(t, src, "c1", t1, files("a.txt", "a", "dir/b.txt", "b"))
	c2 := mustCommit(t, src, "c2", t2, files("a.txt", "a", "dir/b.txt", "bb"))
	c3 := mustCommit(t, src, "c3", t3, files("a.txt", "aa", "dir/b.txt", "bb"))

	info, bundles := exportMaster(t, src)
	if len(bundles) != 3 {
		t.Fatalf("exported %d commits, want 3", len(bundles))
	}

	dst := New()
	res, err := dst.ImportBranch(ImportRequest{Branch: "origin/master", Info: info, Commits: bundles, Policy: TrackRemote})
	if err != nil {
		t.Fatalf("ImportBranch: %v", err)
	}
	if res.CommitsWritten != 3 {
		t.Fatalf("CommitsWritten = %d, want 3", res.CommitsWritten)
	}
	if diff := cmp.Diff(src.Store.Records(), dst.Store.Records()); diff != "" {
		t.Fatalf("object graphs differ (-src +dst):\n%s", diff)
	}
	tracking := mustBranch(t, dst, "origin/master")
	if tracking.Tip != c3 || tracking.Created != c3 {
		t.Fatalf("origin/master = %+v, want tip and created %s", tracking, c3.Short())
	}
	got, err := dst.History(c3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]object.Hash{c3, c2, c1}, hashes(got)); diff != "" {
		t.Fatalf("imported chain (-want +got):\n%s", diff)
	}
	if name, _ := dst.HeadState().Branch(); name != "master" {
		t.Fatalf("import moved HEAD to %v", dst.HeadState())
	}

	c4 := mustCommit(t, src, "c4", t3.Add(1), files("a.txt", "aaa"))
	info, bundles = exportMaster(t, src)
	res, err = dst.ImportBranch(ImportRequest{Branch: "origin/master", Info: info, Commits: bundles, Policy: TrackRemote})
	if err != nil {
		t.Fatalf("second ImportBranch: %v", err)
	}
	if res.CommitsWritten != 1 {
		t.Fatalf("second import wrote %d commits, want 1", res.CommitsWritten)
	}
	tracking = mustBranch(t, dst, "origin/master")
	if tracking.Tip != c4 || tracking.Created != c3 {
		t.Fatalf("origin/master = %+v, want tip %s created %s", tracking, c4.Short(), c3.Short())
	}
}

func TestImportBranch_OverwritePolicy(t *testing.T) {
	src := New()
	mustCommit(t, src, "c1", t1, files("a", "1"))
	info, bundles := exportMaster(t, src)

	dst := New()
	if _, err := dst.ImportBranch(ImportRequest{Branch: "topic", Info: Branch{Tip: info.Tip, Created: info.Tip}, Commits: bundles, Policy: OverwriteBranch}); err != nil {
		t.Fatalf("ImportBranch: %v", err)
	}
	if got := mustBranch(t, dst, "topic"); got.Tip != info.Tip || got.Created != info.Tip {
		t.Fatalf("new branch = %+v", got)
	}

	own := mustCommit(t, dst, "unrelated", t2, files("z", "z"))
	if _, err := dst.ImportBranch(ImportRequest{Branch: "master", Info: info, Commits: bundles, Policy: OverwriteBranch}); err != nil {
		t.Fatalf("ImportBranch: %v", err)
	}
	got := mustBranch(t, dst, "master")
	if got.Tip != info.Tip {
		t.Fatalf("master.Tip = %s, want overwritten to %s (was %s)", got.Tip, info.Tip, own)
	}
	if got.Created != "" {
		t.Fatalf("master.Created = %q, want kept empty", got.Created)
	}
}

func TestImportBranch_RejectsTamperedCommit(t *testing.T) {
	src := New()
	mustCommit(t, src, "c1", t1, files("a", "1"))
	info, bundles := exportMaster(t, src)

	tampered := *bundles[0].Commit
	tampered.Message = "forged"
	bundles[0].Commit = &tampered

	dst := New()
	_, err := dst.ImportBranch(ImportRequest{Branch: "origin/master", Info: info, Commits: bundles, Policy: TrackRemote})
	if !failure.Is(err, failure.Corrupt) {
		t.Fatalf("ImportBranch = %v, want corrupt", err)
	}
	if _, err := dst.Branch("origin/master"); !failure.Is(err, failure.NotFound) {
		t.Fatalf("ref was created despite corrupt import")
	}
}

func TestImportBranch_RejectsTreeMismatch(t *testing.T) {
	src := New()
	mustCommit(t, src, "c1", t1, files("a", "1"))
	other := New()
	mustCommit(t, other, "o1", t1, files("b", "2"))
	info, bundles := exportMaster(t, src)
	_, otherBundles := exportMaster(t, other)
	bundles[0].Root = otherBundles[0].Root

	_, err := New().ImportBranch(ImportRequest{Branch: "x", Info: info, Commits: bundles, Policy: TrackRemote})
	if !failure.Is(err, failure.Corrupt) {
		t.Fatalf("ImportBranch = %v, want corrupt", err)
	}
}

func TestImportBranch_IncompleteHistoryDoesNotMoveRef(t *testing.T) {
	src := New()
	mustCommit(t, src, "c1", t1, files("a", "1"))
	mustCommit(t, src, "c2", t2, files("a", "2"))
	info, bundles := exportMaster(t, src)

	var onlyTip []CommitBundle
	for _, b := range bundles {
		if b.Hash == info.Tip {
			onlyTip = append(onlyTip, b)
		}
	}
	dst := New()
	_, err := dst.ImportBranch(ImportRequest{Branch: "origin/master", Info: info, Commits: onlyTip, Policy: TrackRemote})
	if !failure.Is(err, failure.NotFound) {
		t.Fatalf("ImportBranch = %v, want not-found", err)
	}
	if _, err := dst.Branch("origin/master"); err == nil {
		t.Fatal("ref was created with missing ancestors")
	}
}

func TestExportBranch_Errors(t *testing.T) {
	r := New()
	if _, _, err := r.ExportBranch("nope"); !failure.Is(err, failure.NotFound) {
		t.Fatalf("ExportBranch(nope) = %v, want not-found", err)
	}
	info, bundles, err := r.ExportBranch("master")
	if err != nil || info.Tip != "" || len(bundles) != 0 {
		t.Fatalf("ExportBranch(empty master) = %+v %d %v", info, len(bundles), err)
	}
}
