package repo

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// IssueKind classifies an integrity problem.
type IssueKind int

const (
	DanglingRef   IssueKind = iota + 1 // ref or detached HEAD names an absent commit
	CorruptObject                      // stored bytes unreadable, undecodable, or not matching the id
	MissingTree                        // commit names an absent root tree
	MissingObject                      // tree entry names an absent object
	MissingParent                      // commit names an absent parent
	KindMismatch                       // object is not the kind its referrer declares
)

func (k IssueKind) String() string {
	switch k {
	case DanglingRef:
		return "dangling-ref"
	case CorruptObject:
		return "corrupt-object"
	case MissingTree:
		return "missing-tree"
	case MissingObject:
		return "missing-object"
	case MissingParent:
		return "missing-parent"
	case KindMismatch:
		return "kind-mismatch"
	default:
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
}

// IntegrityIssue is one problem found by Verify. Which fields are set depends
// on Kind: Ref for DanglingRef, TreeID and EntryName for MissingObject, Object
// (the object the issue is about) for the rest.
type IntegrityIssue struct {
	Kind      IssueKind
	Ref       refs.Name
	Object    object.ObjectID
	TreeID    object.TreeID
	EntryName string
	Err       error
}

func (i IntegrityIssue) String() string {
	switch i.Kind {
	case DanglingRef:
		return fmt.Sprintf("%s: %s -> %s", i.Kind, i.Ref, i.Object)
	case MissingObject:
		return fmt.Sprintf("%s: tree %s entry %q -> %s", i.Kind, i.TreeID, i.EntryName, i.Object)
	default:
		if i.Err != nil {
			return fmt.Sprintf("%s: %s: %v", i.Kind, i.Object, i.Err)
		}
		return fmt.Sprintf("%s: %s", i.Kind, i.Object)
	}
}

// IntegrityReport accumulates every issue found in one Verify run.
type IntegrityReport struct {
	Issues         []IntegrityIssue
	ObjectsChecked int
	RefsChecked    int
}

// IsHealthy reports whether no issues were found.
func (r *IntegrityReport) IsHealthy() bool { return len(r.Issues) == 0 }

// VerifyOptions tunes Verify. Concurrency bounds parallel object reads and
// defaults to GOMAXPROCS.
type VerifyOptions struct {
	Concurrency int
}

// headRefName labels a detached HEAD in DanglingRef issues.
const headRefName refs.Name = "HEAD"

type verifyItem struct {
	id   object.ObjectID
	kind object.Kind
}

type readResult struct {
	obj object.Object
	err error
}

// Verify checks every object reachable from the refs (and a detached HEAD).
// The ref snapshot comes from one ListRefs call. Objects are visited
// breadth-first one level at a time; each level is read in parallel and then
// processed in enqueue order, so the report is deterministic. Only a ListRefs
// or ReadHead failure aborts; every other problem becomes an issue.
func Verify(store *object.Store, rs refs.Store, opts VerifyOptions) (*IntegrityReport, error) {
	list, err := rs.ListRefs()
	if err != nil {
		return nil, fmt.Errorf("verify: list refs: %w", err)
	}
	head, err := rs.ReadHead()
	if err != nil {
		return nil, fmt.Errorf("verify: read HEAD: %w", err)
	}

	v := &verifier{
		store:   store,
		report:  &IntegrityReport{},
		visited: make(map[object.ObjectID]struct{}),
	}
	for _, ref := range list {
		v.checkRoot(ref.Name, ref.Target.Commit)
	}
	if head.Kind == refs.HeadDetached {
		v.checkRoot(headRefName, head.Commit)
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	for len(v.level) > 0 {
		level := v.level
		v.level = nil

		results := make([]readResult, len(level))
		p := pool.New().WithMaxGoroutines(workers)
		for i, item := range level {
			p.Go(func() {
				obj, err := store.Read(item.id)
				results[i] = readResult{obj: obj, err: err}
			})
		}
		p.Wait()

		for i, item := range level {
			v.process(item, results[i])
		}
	}
	return v.report, nil
}

// Verify runs Verify over r's stores with default options.
func (r *Repo) Verify() (*IntegrityReport, error) {
	rep, err := Verify(r.Store, r.Refs, VerifyOptions{})
	if err != nil {
		return nil, err
	}
	r.logf("verify: %d refs, %d objects, %d issues", rep.RefsChecked, rep.ObjectsChecked, len(rep.Issues))
	return rep, nil
}

type verifier struct {
	store   *object.Store
	report  *IntegrityReport
	visited map[object.ObjectID]struct{}
	level   []verifyItem
}

func (v *verifier) add(issue IntegrityIssue) {
	v.report.Issues = append(v.report.Issues, issue)
}

func (v *verifier) enqueue(id object.ObjectID, kind object.Kind) {
	if _, seen := v.visited[id]; seen {
		return
	}
	v.visited[id] = struct{}{}
	v.level = append(v.level, verifyItem{id: id, kind: kind})
}

type presence int

const (
	present presence = iota
	absent
	unknown // backend error, already recorded as corruption
)

func (v *verifier) presence(id object.ObjectID) presence {
	ok, err := v.store.Exists(id)
	switch {
	case err != nil:
		v.add(IntegrityIssue{Kind: CorruptObject, Object: id, Err: err})
		return unknown
	case ok:
		return present
	default:
		return absent
	}
}

func (v *verifier) checkRoot(name refs.Name, id object.CommitID) {
	v.report.RefsChecked++
	ok, err := v.store.Exists(id.Object())
	if err != nil {
		v.add(IntegrityIssue{Kind: CorruptObject, Ref: name, Object: id.Object(), Err: err})
		return
	}
	if !ok {
		v.add(IntegrityIssue{Kind: DanglingRef, Ref: name, Object: id.Object()})
		return
	}
	v.enqueue(id.Object(), object.KindCommit)
}

func (v *verifier) process(item verifyItem, res readResult) {
	v.report.ObjectsChecked++
	if res.err != nil {
		if !errors.Is(res.err, object.ErrCorrupt) && !errors.Is(res.err, object.ErrNotFound) {
			res.err = fmt.Errorf("%w: %w", object.ErrCorrupt, res.err)
		}
		v.add(IntegrityIssue{Kind: CorruptObject, Object: item.id, Err: res.err})
		return
	}
	if res.obj.Kind() != item.kind {
		v.add(IntegrityIssue{
			Kind:   KindMismatch,
			Object: item.id,
			Err:    fmt.Errorf("%w: want %s, found %s", object.ErrKindMismatch, item.kind, res.obj.Kind()),
		})
		return
	}

	switch obj := res.obj.(type) {
	case *object.Commit:
		switch v.presence(obj.TreeID.Object()) {
		case present:
			v.enqueue(obj.TreeID.Object(), object.KindTree)
		case absent:
			v.add(IntegrityIssue{Kind: MissingTree, Object: obj.TreeID.Object(), Err: fmt.Errorf("commit %s", obj.ID)})
		}
		for _, p := range obj.ParentIDs {
			switch v.presence(p.Object()) {
			case present:
				v.enqueue(p.Object(), object.KindCommit)
			case absent:
				v.add(IntegrityIssue{Kind: MissingParent, Object: p.Object(), Err: fmt.Errorf("commit %s", obj.ID)})
			}
		}
	case *object.Tree:
		treeID := object.TreeID(item.id)
		for _, e := range obj.Entries {
			switch v.presence(e.ID) {
			case present:
				v.enqueue(e.ID, e.Kind)
			case absent:
				v.add(IntegrityIssue{Kind: MissingObject, Object: e.ID, TreeID: treeID, EntryName: e.Name})
			}
		}
	case *object.Blob:
		// Leaf.
	}
}
