package core

import (
	"context"
	"fmt"

	"famgraph/pkg/domain"
)

// RelationshipMirrorRule recomputes the relationship records for the pending
// state and checks that each one names two existing members and that every
// edge projects to exactly one record.
func RelationshipMirrorRule() domain.Rule {
	return relationshipMirrorRule{}
}

type relationshipMirrorRule struct{}

func (relationshipMirrorRule) Name() string { return RuleRelationshipMirror }

func (relationshipMirrorRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	members := view.ListMembers()
	index := memberIndex(members)
	records := domain.ProjectRelationships(members)
	add := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleRelationshipMirror,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityRelationship,
			EntityID: id,
		})
	}

	byID := make(map[string]struct{}, len(records))
	for _, rec := range records {
		byID[rec.ID] = struct{}{}
		for _, endpoint := range []string{rec.Member1ID, rec.Member2ID} {
			if _, ok := index[endpoint]; !ok {
				add(rec.ID, fmt.Sprintf("relationship %s names missing member %s", rec.ID, endpoint))
			}
		}
	}
	for _, m := range members {
		for _, parentID := range m.ParentIDs {
			if _, ok := byID[domain.ParentRecordID(parentID, m.ID)]; !ok {
				add(domain.ParentRecordID(parentID, m.ID), fmt.Sprintf("parent edge %s -> %s has no relationship record", parentID, m.ID))
			}
		}
	}

	for _, change := range changes {
		if change.Action != domain.ActionDelete {
			continue
		}
		deleted, ok := change.MemberBefore()
		if !ok {
			continue
		}
		if remaining := domain.RelationshipsFor(records, deleted.ID); len(remaining) > 0 {
			add(remaining[0].ID, fmt.Sprintf("deleted member %s still has %d relationship records", deleted.ID, len(remaining)))
		}
	}
	return res, nil
}
