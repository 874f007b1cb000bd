package core

import (
	"context"
	"fmt"

	"famgraph/pkg/domain"
)

// EdgeSymmetryRule requires parent/child and spouse edges to be recorded on
// both endpoints and forbids self-references.
func EdgeSymmetryRule() domain.Rule {
	return edgeSymmetryRule{}
}

type edgeSymmetryRule struct{}

func (edgeSymmetryRule) Name() string { return RuleEdgeSymmetry }

func (edgeSymmetryRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	members := view.ListMembers()
	index := memberIndex(members)
	add := func(id, msg string) {
		res.Violations = append(res.Violations, memberViolation(RuleEdgeSymmetry, domain.SeverityBlock, id, msg))
	}

	for _, m := range members {
		for _, parentID := range m.ParentIDs {
			if parentID == m.ID {
				add(m.ID, fmt.Sprintf("member %s lists itself as a parent", m.ID))
				continue
			}
			parent, ok := index[parentID]
			if ok && !domain.ContainsID(parent.ChildrenIDs, m.ID) {
				add(m.ID, fmt.Sprintf("parent %s does not list child %s", parentID, m.ID))
			}
		}
		for _, childID := range m.ChildrenIDs {
			if childID == m.ID {
				add(m.ID, fmt.Sprintf("member %s lists itself as a child", m.ID))
				continue
			}
			child, ok := index[childID]
			if ok && !domain.ContainsID(child.ParentIDs, m.ID) {
				add(m.ID, fmt.Sprintf("child %s does not list parent %s", childID, m.ID))
			}
		}
		if !m.HasSpouse() {
			continue
		}
		if m.SpouseIs(m.ID) {
			add(m.ID, fmt.Sprintf("member %s is married to itself", m.ID))
			continue
		}
		spouse, ok := index[*m.SpouseID]
		if ok && !spouse.SpouseIs(m.ID) {
			add(m.ID, fmt.Sprintf("spouse %s does not point back at %s", spouse.ID, m.ID))
		}
	}
	return res, nil
}
