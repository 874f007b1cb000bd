package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"famgraph/pkg/domain"
)

func TestCreateMemberReportsAllMissingFields(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreateMember(context.Background(), domain.MemberInput{})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"first_name", "last_name", "birth_date", "gender", "generation"} {
		if !verr.HasField(field) {
			t.Fatalf("expected %s to be reported, got %+v", field, verr.Fields)
		}
	}
	if len(svc.ListMembers()) != 0 {
		t.Fatalf("rejected create must not store a member")
	}
}

func TestCreateMemberWiresParentsAndSpouse(t *testing.T) {
	svc := newTestService(t)
	mother := mustCreate(t, svc, memberInput("Ada", 1))
	father := mustCreate(t, svc, memberInput("Ben", 1))
	partner := mustCreate(t, svc, memberInput("Dee", 2))

	in := memberInput("Cal", 2)
	in.ParentIDs = []string{father.ID, mother.ID, mother.ID}
	in.SpouseID = strPtr(partner.ID)
	child := mustCreate(t, svc, in)

	if child.ID == "" || child.Version < 1 {
		t.Fatalf("expected assigned id and version, got %+v", child)
	}
	if len(child.ParentIDs) != 2 {
		t.Fatalf("expected deduplicated parents, got %v", child.ParentIDs)
	}
	for _, p := range []string{mother.ID, father.ID} {
		if !domain.ContainsID(mustGet(t, svc, p).ChildrenIDs, child.ID) {
			t.Fatalf("parent %s missing child back-reference", p)
		}
	}
	if !mustGet(t, svc, partner.ID).SpouseIs(child.ID) {
		t.Fatalf("spouse back-reference not set")
	}
	assertConsistent(t, svc)
}

func TestCreateMemberMissingParentIsNotFound(t *testing.T) {
	svc := newTestService(t)
	in := memberInput("Orphan", 2)
	in.ParentIDs = []string{"ghost"}
	_, _, err := svc.CreateMember(context.Background(), in)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(svc.ListMembers()) != 0 {
		t.Fatalf("failed create must leave the store empty")
	}
}

func TestUpdateMemberMovesChildBetweenParents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p1 := mustCreate(t, svc, memberInput("P1", 1))
	p2 := mustCreate(t, svc, memberInput("P2", 1))
	in := memberInput("Kid", 2)
	in.ParentIDs = []string{p1.ID}
	kid := mustCreate(t, svc, in)

	parents := []string{p2.ID}
	updated, _, err := svc.UpdateMember(ctx, kid.ID, domain.MemberPatch{ParentIDs: &parents})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.ParentIDs) != 1 || updated.ParentIDs[0] != p2.ID {
		t.Fatalf("unexpected parents %v", updated.ParentIDs)
	}
	if domain.ContainsID(mustGet(t, svc, p1.ID).ChildrenIDs, kid.ID) {
		t.Fatalf("old parent still lists child")
	}
	if !domain.ContainsID(mustGet(t, svc, p2.ID).ChildrenIDs, kid.ID) {
		t.Fatalf("new parent does not list child")
	}
	assertConsistent(t, svc)
}

func TestUpdateMemberKeepsChildrenAndFields(t *testing.T) {
	svc := newTestService(t)
	parent := mustCreate(t, svc, memberInput("Root", 1))
	in := memberInput("Leaf", 2)
	in.ParentIDs = []string{parent.ID}
	mustCreate(t, svc, in)

	bio := "keeps bees"
	updated, _, err := svc.UpdateMember(context.Background(), parent.ID, domain.MemberPatch{Bio: &bio})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Bio != bio || len(updated.ChildrenIDs) != 1 {
		t.Fatalf("unexpected member after patch: %+v", updated)
	}
	if updated.Version <= parent.Version {
		t.Fatalf("version not bumped: %d -> %d", parent.Version, updated.Version)
	}
}

func TestUpdateMemberRejectsSelfReferences(t *testing.T) {
	svc := newTestService(t)
	m := mustCreate(t, svc, memberInput("Solo", 1))
	parents := []string{m.ID}
	if _, _, err := svc.UpdateMember(context.Background(), m.ID, domain.MemberPatch{ParentIDs: &parents}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for self parent, got %v", err)
	}
	if _, _, err := svc.UpdateMember(context.Background(), m.ID, domain.MemberPatch{SpouseID: domain.Some(m.ID)}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for self spouse, got %v", err)
	}
}

func TestUpdateMemberNotFound(t *testing.T) {
	svc := newTestService(t)
	bio := "x"
	if _, _, err := svc.UpdateMember(context.Background(), "missing", domain.MemberPatch{Bio: &bio}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateMemberRejectsCycle(t *testing.T) {
	svc := newTestService(t)
	grand := mustCreate(t, svc, memberInput("Grand", 1))
	in := memberInput("Mid", 2)
	in.ParentIDs = []string{grand.ID}
	mid := mustCreate(t, svc, in)
	in = memberInput("Young", 3)
	in.ParentIDs = []string{mid.ID}
	young := mustCreate(t, svc, in)

	parents := []string{young.ID}
	_, _, err := svc.UpdateMember(context.Background(), grand.ID, domain.MemberPatch{ParentIDs: &parents})
	if !domain.IsValidation(err) {
		t.Fatalf("expected cycle to be rejected, got %v", err)
	}
	if len(mustGet(t, svc, grand.ID).ParentIDs) != 0 {
		t.Fatalf("rejected update leaked parents")
	}
	assertConsistent(t, svc)
}

func TestUpdateMemberStaleExpectedVersionConflicts(t *testing.T) {
	svc := newTestService(t)
	m := mustCreate(t, svc, memberInput("Vera", 1))
	bio := "first"
	if _, _, err := svc.UpdateMember(context.Background(), m.ID, domain.MemberPatch{Bio: &bio, ExpectedVersion: &m.Version}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	bio = "second"
	_, _, err := svc.UpdateMember(context.Background(), m.ID, domain.MemberPatch{Bio: &bio, ExpectedVersion: &m.Version})
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.Expected != m.Version || conflict.Actual != m.Version+1 {
		t.Fatalf("unexpected conflict detail %+v", conflict)
	}
	if mustGet(t, svc, m.ID).Bio != "first" {
		t.Fatalf("conflicting update must not apply")
	}
}

func TestSpouseUpdateIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	a := mustCreate(t, svc, memberInput("A", 1))
	b := mustCreate(t, svc, memberInput("B", 1))
	ctx := context.Background()

	first, _, err := svc.UpdateMember(ctx, a.ID, domain.MemberPatch{SpouseID: domain.Some(b.ID)})
	if err != nil {
		t.Fatalf("first marry: %v", err)
	}
	bAfterFirst := mustGet(t, svc, b.ID)
	second, _, err := svc.UpdateMember(ctx, a.ID, domain.MemberPatch{SpouseID: domain.Some(b.ID)})
	if err != nil {
		t.Fatalf("second marry: %v", err)
	}
	if !first.SpouseIs(b.ID) || !second.SpouseIs(b.ID) {
		t.Fatalf("spouse pointer lost")
	}
	if got := mustGet(t, svc, b.ID); got.Version != bAfterFirst.Version || !got.SpouseIs(a.ID) {
		t.Fatalf("repeated marry must not rewrite spouse: %+v", got)
	}
	assertConsistent(t, svc)
}

func TestSpouseChangeClearsPreviousSpouse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, memberInput("A", 1))
	b := mustCreate(t, svc, memberInput("B", 1))
	c := mustCreate(t, svc, memberInput("C", 1))

	if _, _, err := svc.UpdateMember(ctx, a.ID, domain.MemberPatch{SpouseID: domain.Some(b.ID)}); err != nil {
		t.Fatalf("marry b: %v", err)
	}
	if _, _, err := svc.UpdateMember(ctx, a.ID, domain.MemberPatch{SpouseID: domain.Some(c.ID)}); err != nil {
		t.Fatalf("marry c: %v", err)
	}
	if mustGet(t, svc, b.ID).HasSpouse() {
		t.Fatalf("previous spouse still married")
	}
	if !mustGet(t, svc, c.ID).SpouseIs(a.ID) {
		t.Fatalf("new spouse not linked")
	}

	if _, _, err := svc.UpdateMember(ctx, a.ID, domain.MemberPatch{SpouseID: domain.Null[string]()}); err != nil {
		t.Fatalf("divorce: %v", err)
	}
	if mustGet(t, svc, a.ID).HasSpouse() || mustGet(t, svc, c.ID).HasSpouse() {
		t.Fatalf("explicit null must clear both sides")
	}
	assertConsistent(t, svc)
}

func TestSpouseAlreadyMarriedIsRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, memberInput("A", 1))
	in := memberInput("B", 1)
	in.SpouseID = strPtr(a.ID)
	b := mustCreate(t, svc, in)
	c := mustCreate(t, svc, memberInput("C", 1))

	_, _, err := svc.UpdateMember(ctx, c.ID, domain.MemberPatch{SpouseID: domain.Some(a.ID)})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !mustGet(t, svc, a.ID).SpouseIs(b.ID) {
		t.Fatalf("existing marriage must survive")
	}
}

func TestDeleteMemberWorkedExample(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, memberInput("A", 1))
	in := memberInput("B", 1)
	in.SpouseID = strPtr(a.ID)
	b := mustCreate(t, svc, in)
	in = memberInput("C", 2)
	in.ParentIDs = []string{a.ID, b.ID}
	c := mustCreate(t, svc, in)

	if _, err := svc.DeleteMember(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetMember(a.ID); !domain.IsNotFound(err) {
		t.Fatalf("deleted member still readable: %v", err)
	}
	gotC := mustGet(t, svc, c.ID)
	if len(gotC.ParentIDs) != 1 || gotC.ParentIDs[0] != b.ID {
		t.Fatalf("child parents not cleaned: %v", gotC.ParentIDs)
	}
	if mustGet(t, svc, b.ID).HasSpouse() {
		t.Fatalf("spouse pointer not cleared")
	}
	graph, err := svc.Graph(ctx)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if len(graph.Relationships) != 1 || graph.Relationships[0].ID != domain.ParentRecordID(b.ID, c.ID) {
		t.Fatalf("unexpected relationships after delete: %+v", graph.Relationships)
	}
	assertConsistent(t, svc)
}

func TestDeleteMemberRemovesFromParentsChildren(t *testing.T) {
	svc := newTestService(t)
	parent := mustCreate(t, svc, memberInput("P", 1))
	in := memberInput("K", 2)
	in.ParentIDs = []string{parent.ID}
	kid := mustCreate(t, svc, in)

	if _, err := svc.DeleteMember(context.Background(), kid.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mustGet(t, svc, parent.ID).ChildrenIDs) != 0 {
		t.Fatalf("parent still lists deleted child")
	}
}

func TestDeleteMemberNotFound(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.DeleteMember(context.Background(), "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateIsAtomicWhenStoreFailsMidway(t *testing.T) {
	engine := NewDefaultRulesEngine()
	base := NewInMemoryService(engine)
	p1 := mustCreate(t, base, memberInput("P1", 1))
	p2 := mustCreate(t, base, memberInput("P2", 1))
	in := memberInput("Kid", 2)
	in.ParentIDs = []string{p1.ID}
	kid := mustCreate(t, base, in)
	before := base.ListMembers()

	// write 1 removes the old parent link, write 2 adds the new one
	svc := NewService(&faultyStore{PersistentStore: base.Store(), failOnWrite: 2}, WithRulesEngine(engine))
	parents := []string{p2.ID}
	_, _, err := svc.UpdateMember(context.Background(), kid.ID, domain.MemberPatch{ParentIDs: &parents})
	if !errors.Is(err, errInjected) || !domain.IsInternal(err) {
		t.Fatalf("expected wrapped injected failure, got %v", err)
	}
	after := base.ListMembers()
	if len(after) != len(before) {
		t.Fatalf("member count changed")
	}
	for i := range before {
		if before[i].Version != after[i].Version {
			t.Fatalf("member %s changed despite abort", before[i].ID)
		}
	}
	if !domain.ContainsID(mustGet(t, base, p1.ID).ChildrenIDs, kid.ID) {
		t.Fatalf("old parent link lost after abort")
	}
	assertConsistent(t, base)
}

func TestMutationTimeoutIsInternalAndLeavesNoState(t *testing.T) {
	base := newTestService(t)
	svc := NewService(stallingStore{PersistentStore: base.Store()}, WithTxTimeout(20*time.Millisecond))
	_, _, err := svc.CreateMember(context.Background(), memberInput("Slow", 1))
	if !domain.IsInternal(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected internal deadline error, got %v", err)
	}
	if len(base.ListMembers()) != 0 {
		t.Fatalf("timed out create must not persist")
	}
}

func TestBlockingRuleViolationIsInternal(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	svc := NewInMemoryService(engine)
	_, _, err := svc.CreateMember(context.Background(), memberInput("Blocked", 1))
	var rv domain.RuleViolationError
	if !domain.IsInternal(err) || !errors.As(err, &rv) {
		t.Fatalf("expected internal error wrapping rule violation, got %v", err)
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock, Message: "no"}}}, nil
}

func TestGenerationOrderWarnsButCommits(t *testing.T) {
	logger := &captureLogger{}
	svc := newTestService(t, WithLogger(logger))
	parent := mustCreate(t, svc, memberInput("Late", 3))
	in := memberInput("Early", 2)
	in.ParentIDs = []string{parent.ID}
	_, res, err := svc.CreateMember(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != RuleGenerationOrder || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected generation warning, got %+v", res.Violations)
	}
	if logger.count("warn", "rule violation") != 1 {
		t.Fatalf("expected warning to be logged")
	}
}
