package core

import (
	"context"
	"fmt"

	"famgraph/pkg/domain"
)

// LineageAcyclicRule blocks commits in which a member becomes its own
// ancestor.
func LineageAcyclicRule() domain.Rule {
	return lineageAcyclicRule{}
}

type lineageAcyclicRule struct{}

func (lineageAcyclicRule) Name() string { return RuleLineageAcyclic }

const (
	unvisited = iota
	visiting
	done
)

func (lineageAcyclicRule) Evaluate(ctx context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	members := view.ListMembers()
	index := memberIndex(members)
	state := make(map[string]int, len(members))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, parentID := range index[id].ParentIDs {
			if _, ok := index[parentID]; !ok {
				continue
			}
			if hit := visit(parentID); hit != "" {
				return hit
			}
		}
		state[id] = done
		return ""
	}

	reported := map[string]struct{}{}
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}
		if state[m.ID] != unvisited {
			continue
		}
		if hit := visit(m.ID); hit != "" {
			if _, ok := reported[hit]; !ok {
				reported[hit] = struct{}{}
				res.Violations = append(res.Violations, memberViolation(RuleLineageAcyclic, domain.SeverityBlock, hit,
					fmt.Sprintf("member %s is its own ancestor", hit)))
			}
			// members left in the visiting state belong to the reported cycle
			for id, st := range state {
				if st == visiting {
					state[id] = done
				}
			}
		}
	}
	return res, nil
}
