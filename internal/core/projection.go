package core

import (
	"context"
	"sort"

	"famgraph/pkg/domain"
)

// Graph is a consistent read of the whole family graph.
type Graph struct {
	Members       []domain.Member             `json:"members"`
	Relationships []domain.RelationshipRecord `json:"relationships"`
}

// Graph returns every member together with the relationship records derived
// from their edge fields, taken from one snapshot.
func (s *Service) Graph(ctx context.Context) (Graph, error) {
	var g Graph
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		g.Members = view.ListMembers()
		g.Relationships = domain.ProjectRelationships(g.Members)
		return nil
	})
	if err != nil {
		return Graph{}, domain.InternalError{Op: "graph", Err: err}
	}
	return g, nil
}

// Relationships returns the records in which id takes part.
func (s *Service) Relationships(ctx context.Context, id string) ([]domain.RelationshipRecord, error) {
	var out []domain.RelationshipRecord
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindMember(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityMember, ID: id}
		}
		out = domain.RelationshipsFor(domain.ProjectRelationships(view.ListMembers()), id)
		return nil
	})
	if err != nil {
		return nil, classifyError("relationships", err)
	}
	return out, nil
}

// Ancestors walks parent_ids breadth-first from id. Nearer generations come
// first; members at the same distance are ordered by id.
func (s *Service) Ancestors(ctx context.Context, id string) ([]domain.Member, error) {
	return s.walk(ctx, "ancestors", id, func(m domain.Member) []string { return m.ParentIDs })
}

// Descendants walks children_ids breadth-first from id.
func (s *Service) Descendants(ctx context.Context, id string) ([]domain.Member, error) {
	return s.walk(ctx, "descendants", id, func(m domain.Member) []string { return m.ChildrenIDs })
}

func (s *Service) walk(ctx context.Context, op, id string, next func(domain.Member) []string) ([]domain.Member, error) {
	var out []domain.Member
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		root, ok := view.FindMember(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMember, ID: id}
		}
		seen := map[string]struct{}{root.ID: {}}
		frontier := []domain.Member{root}
		for len(frontier) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			var level []domain.Member
			for _, m := range frontier {
				for _, nextID := range next(m) {
					if _, ok := seen[nextID]; ok {
						continue
					}
					seen[nextID] = struct{}{}
					if found, ok := view.FindMember(nextID); ok {
						level = append(level, found)
					}
				}
			}
			sort.Slice(level, func(i, j int) bool { return level[i].ID < level[j].ID })
			out = append(out, level...)
			frontier = level
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	return out, nil
}
