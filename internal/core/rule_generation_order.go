package core

import (
	"context"
	"fmt"

	"famgraph/pkg/domain"
)

// GenerationOrderRule warns when a child's generation label is not greater
// than one of its parents'. Generation is a free label, so this never blocks.
func GenerationOrderRule() domain.Rule {
	return generationOrderRule{}
}

type generationOrderRule struct{}

func (generationOrderRule) Name() string { return RuleGenerationOrder }

func (generationOrderRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := map[string]struct{}{}
	for _, change := range changes {
		if after, ok := change.MemberAfter(); ok {
			touched[after.ID] = struct{}{}
		}
	}
	for id := range touched {
		m, ok := view.FindMember(id)
		if !ok {
			continue
		}
		for _, parentID := range m.ParentIDs {
			parent, ok := view.FindMember(parentID)
			if !ok || m.Generation > parent.Generation {
				continue
			}
			res.Violations = append(res.Violations, memberViolation(RuleGenerationOrder, domain.SeverityWarn, m.ID,
				fmt.Sprintf("member %s generation %d is not after parent %s generation %d", m.ID, m.Generation, parentID, parent.Generation)))
		}
	}
	return res, nil
}
