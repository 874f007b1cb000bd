package core

import (
	"context"
	"fmt"

	"famgraph/pkg/domain"
)

// ReferentialIntegrityRule blocks commits that leave an edge pointing at a
// member that does not exist.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return RuleReferentialIntegrity }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	members := view.ListMembers()
	index := memberIndex(members)
	check := func(owner domain.Member, field, ref string) {
		if _, ok := index[ref]; ok {
			return
		}
		res.Violations = append(res.Violations, memberViolation(RuleReferentialIntegrity, domain.SeverityBlock, owner.ID,
			fmt.Sprintf("member %s %s references missing member %s", owner.ID, field, ref)))
	}
	for _, m := range members {
		for _, id := range m.ParentIDs {
			check(m, "parent_ids", id)
		}
		for _, id := range m.ChildrenIDs {
			check(m, "children_ids", id)
		}
		if m.HasSpouse() {
			check(m, "spouse_id", *m.SpouseID)
		}
	}
	return res, nil
}
