package repo

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

var ignoreIssueErr = cmpopts.IgnoreFields(IntegrityIssue{}, "Err")

func pointRef(t *testing.T, r *Repo, branch string, id object.CommitID) refs.Name {
	t.Helper()
	name := refs.BranchName(branch)
	if err := r.Refs.WriteRef(name, refs.CommitTarget(id), true, nil); err != nil {
		t.Fatalf("WriteRef(%s): %v", name, err)
	}
	return name
}

func mustVerify(t *testing.T, r *Repo) *IntegrityReport {
	t.Helper()
	rep, err := Verify(r.Store, r.Refs, VerifyOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return rep
}

func TestVerify_Healthy(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, map[string]string{"readme.md": "hi", "src/a.go": "package a"}, "one")
	commitFiles(t, r, map[string]string{"readme.md": "hi", "src/a.go": "package a\n"}, "two")

	rep := mustVerify(t, r)
	if !rep.IsHealthy() {
		t.Fatalf("issues: %v", rep.Issues)
	}
	if rep.RefsChecked != 1 {
		t.Errorf("RefsChecked = %d, want 1", rep.RefsChecked)
	}
	// 2 commits, 2 root trees, 2 src trees, 1 readme blob, 2 a.go blobs.
	if rep.ObjectsChecked != 9 {
		t.Errorf("ObjectsChecked = %d, want 9", rep.ObjectsChecked)
	}
}

func TestVerify_EmptyRepository(t *testing.T) {
	r := newTestRepo(t)
	rep := mustVerify(t, r)
	if !rep.IsHealthy() || rep.ObjectsChecked != 0 {
		t.Fatalf("report = %+v, want healthy and empty", rep)
	}
}

func TestVerify_DanglingRef(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, map[string]string{"f": "1"}, "one")
	ghost := object.CommitID(object.HashBytes([]byte("ghost")))
	name := pointRef(t, r, "ghost", ghost)

	rep := mustVerify(t, r)
	want := []IntegrityIssue{{Kind: DanglingRef, Ref: name, Object: ghost.Object()}}
	if diff := cmp.Diff(want, rep.Issues, ignoreIssueErr); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify_DanglingDetachedHead(t *testing.T) {
	r := newTestRepo(t)
	ghost := object.CommitID(object.HashBytes([]byte("ghost")))
	if err := r.Refs.WriteHead(refs.Detached(ghost)); err != nil {
		t.Fatalf("WriteHead: %v", err)
	}

	rep := mustVerify(t, r)
	want := []IntegrityIssue{{Kind: DanglingRef, Ref: "HEAD", Object: ghost.Object()}}
	if diff := cmp.Diff(want, rep.Issues, ignoreIssueErr); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify_MissingTreeAndParent(t *testing.T) {
	r := newTestRepo(t)
	missingTree := object.TreeID(object.HashBytes([]byte("no tree")))
	missingParent := object.CommitID(object.HashBytes([]byte("no parent")))
	c := writeRawCommit(t, r, missingTree, []object.CommitID{missingParent}, "broken")
	pointRef(t, r, "main", c)

	rep := mustVerify(t, r)
	want := []IntegrityIssue{
		{Kind: MissingTree, Object: missingTree.Object()},
		{Kind: MissingParent, Object: missingParent.Object()},
	}
	if diff := cmp.Diff(want, rep.Issues, ignoreIssueErr); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify_MissingTreeEntry(t *testing.T) {
	r := newTestRepo(t)
	missing := object.HashBytes([]byte("no blob"))
	tree, err := r.Store.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Name: "lost.txt", Kind: object.KindBlob, ID: missing},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	pointRef(t, r, "main", writeRawCommit(t, r, tree, nil, "lost"))

	rep := mustVerify(t, r)
	want := []IntegrityIssue{{Kind: MissingObject, Object: missing, TreeID: tree, EntryName: "lost.txt"}}
	if diff := cmp.Diff(want, rep.Issues, ignoreIssueErr); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify_CorruptObject(t *testing.T) {
	r := newTestRepo(t)
	blob, err := r.Store.WriteBlob([]byte("precious"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := r.Store.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Name: "f", Kind: object.KindBlob, ID: blob.Object()},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	pointRef(t, r, "main", writeRawCommit(t, r, tree, nil, "c"))
	memoryBackend(t, r).Overwrite(blob.Object(), []byte("tampered"))

	rep := mustVerify(t, r)
	if len(rep.Issues) != 1 {
		t.Fatalf("issues = %v, want one", rep.Issues)
	}
	issue := rep.Issues[0]
	if issue.Kind != CorruptObject || issue.Object != blob.Object() {
		t.Fatalf("issue = %v, want corrupt blob %s", issue, blob)
	}
	if !errors.Is(issue.Err, object.ErrCorrupt) {
		t.Errorf("issue error = %v, want ErrCorrupt", issue.Err)
	}
}

func TestVerify_KindMismatch(t *testing.T) {
	r := newTestRepo(t)
	blob, err := r.Store.WriteBlob([]byte("not a tree"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := r.Store.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Name: "dir", Kind: object.KindTree, ID: blob.Object()},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	pointRef(t, r, "main", writeRawCommit(t, r, tree, nil, "c"))

	rep := mustVerify(t, r)
	want := []IntegrityIssue{{Kind: KindMismatch, Object: blob.Object()}}
	if diff := cmp.Diff(want, rep.Issues, ignoreIssueErr); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(rep.Issues[0].Err, object.ErrKindMismatch) {
		t.Errorf("issue error = %v, want ErrKindMismatch", rep.Issues[0].Err)
	}
}

func TestVerify_SharedObjectsVisitedOnce(t *testing.T) {
	r := newTestRepo(t)
	c := commitFiles(t, r, map[string]string{"f": "1"}, "one")
	if err := r.CreateBranch("copy", c); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	rep := mustVerify(t, r)
	if !rep.IsHealthy() {
		t.Fatalf("issues: %v", rep.Issues)
	}
	if rep.RefsChecked != 2 || rep.ObjectsChecked != 3 {
		t.Fatalf("RefsChecked=%d ObjectsChecked=%d, want 2 and 3", rep.RefsChecked, rep.ObjectsChecked)
	}
}

func TestIntegrityIssue_String(t *testing.T) {
	id := object.HashBytes([]byte("x"))
	tests := []struct {
		issue IntegrityIssue
		want  string
	}{
		{IntegrityIssue{Kind: DanglingRef, Ref: "refs/heads/main", Object: id}, "dangling-ref: refs/heads/main -> " + id.String()},
		{IntegrityIssue{Kind: MissingParent, Object: id}, "missing-parent: " + id.String()},
	}
	for _, tt := range tests {
		if got := tt.issue.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
