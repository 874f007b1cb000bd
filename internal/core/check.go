package core

import (
	"context"

	"famgraph/pkg/domain"
)

// CheckGraph evaluates every registered rule over the committed graph. Each
// member is presented as an update so change-scoped rules cover the whole
// graph.
func (s *Service) CheckGraph(ctx context.Context) (domain.Result, error) {
	engine := s.RulesEngine()
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	var res domain.Result
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		members := view.ListMembers()
		changes := make([]domain.Change, 0, len(members))
		for _, m := range members {
			changes = append(changes, domain.Change{Entity: domain.EntityMember, Action: domain.ActionUpdate, Before: m, After: m})
		}
		var err error
		res, err = engine.Evaluate(ctx, view, changes)
		return err
	})
	if err != nil {
		return domain.Result{}, domain.InternalError{Op: "check_graph", Err: err}
	}
	return res, nil
}
