package core

import (
	"context"
	"strings"

	"famgraph/pkg/domain"
)

// Operation names used for logging, metrics, tracing and audit.
const (
	OpCreateMember = "create_member"
	OpUpdateMember = "update_member"
	OpDeleteMember = "delete_member"
)

// CreateMember validates input, stores the member and wires its parent and
// spouse back-references in one transaction.
func (s *Service) CreateMember(ctx context.Context, input domain.MemberInput) (domain.Member, domain.Result, error) {
	op := &operation{name: OpCreateMember, action: domain.ActionCreate}
	var created domain.Member
	res, err := s.run(ctx, op, func(tx domain.Transaction) error {
		if err := input.Validate(); err != nil {
			return err
		}
		member, err := tx.CreateMember(input.Member())
		if err != nil {
			return err
		}
		op.entityID = member.ID

		parents := domain.NormalizeIDs(input.ParentIDs)
		var spouse *string
		if input.SpouseID != nil {
			spouse = domain.StringPtr(strings.TrimSpace(*input.SpouseID))
		}
		if _, err := s.syncer.Apply(tx, SyncRequest{
			MemberID:     member.ID,
			NewParentIDs: parents,
			NewSpouseID:  spouse,
		}); err != nil {
			return err
		}
		if len(parents) > 0 || spouse != nil {
			member, err = tx.CompareAndUpdateMember(member.ID, member.Version, func(m *domain.Member) error {
				m.ParentIDs = parents
				m.SpouseID = spouse
				return nil
			})
			if err != nil {
				return err
			}
		}
		created = member
		return nil
	})
	if err != nil {
		return domain.Member{}, res, err
	}
	return created, res, nil
}

// UpdateMember applies a partial update. Changes to parent_ids or spouse_id
// are propagated to the affected neighbours in the same transaction.
func (s *Service) UpdateMember(ctx context.Context, id string, patch domain.MemberPatch) (domain.Member, domain.Result, error) {
	op := &operation{name: OpUpdateMember, action: domain.ActionUpdate, entityID: id}
	var updated domain.Member
	res, err := s.run(ctx, op, func(tx domain.Transaction) error {
		current, ok := tx.FindMember(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMember, ID: id}
		}
		if err := patch.ValidateFor(id); err != nil {
			return err
		}
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
			return domain.ConflictError{Entity: domain.EntityMember, ID: id, Expected: *patch.ExpectedVersion, Actual: current.Version}
		}
		next := patch.Apply(current)
		if err := domain.ValidateMember(next); err != nil {
			return err
		}
		if _, err := s.syncer.Apply(tx, SyncRequest{
			MemberID:     id,
			OldParentIDs: current.ParentIDs,
			NewParentIDs: next.ParentIDs,
			OldSpouseID:  current.SpouseID,
			NewSpouseID:  next.SpouseID,
		}); err != nil {
			return err
		}
		var err error
		updated, err = tx.CompareAndUpdateMember(id, current.Version, func(m *domain.Member) error {
			children := m.ChildrenIDs
			*m = next
			m.ChildrenIDs = children
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Member{}, res, err
	}
	return updated, res, nil
}

// DeleteMember removes a member and every reference to it: parents lose the
// child, children lose the parent and the spouse is unmarried.
func (s *Service) DeleteMember(ctx context.Context, id string) (domain.Result, error) {
	op := &operation{name: OpDeleteMember, action: domain.ActionDelete, entityID: id}
	return s.run(ctx, op, func(tx domain.Transaction) error {
		target, ok := tx.FindMember(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMember, ID: id}
		}
		for _, neighbourID := range referencingMembers(tx, target) {
			neighbour, ok := tx.FindMember(neighbourID)
			if !ok {
				continue
			}
			if _, err := tx.CompareAndUpdateMember(neighbourID, neighbour.Version, func(m *domain.Member) error {
				m.ChildrenIDs = domain.RemoveID(m.ChildrenIDs, id)
				m.ParentIDs = domain.RemoveID(m.ParentIDs, id)
				if m.SpouseIs(id) {
					m.SpouseID = nil
				}
				return nil
			}); err != nil {
				return err
			}
			s.logger.Debug("cascade cleanup", "member_id", neighbourID, "removed_id", id)
		}
		return tx.DeleteMember(id)
	})
}

// referencingMembers lists every member whose edge fields mention target:
// its parents, children and spouse, plus any stray back-reference found in
// the transaction snapshot.
func referencingMembers(tx domain.Transaction, target domain.Member) []string {
	ids := append([]string(nil), target.ParentIDs...)
	ids = append(ids, target.ChildrenIDs...)
	if target.HasSpouse() {
		ids = append(ids, *target.SpouseID)
	}
	for _, m := range tx.Snapshot().ListMembers() {
		if m.ID == target.ID {
			continue
		}
		if domain.ContainsID(m.ParentIDs, target.ID) || domain.ContainsID(m.ChildrenIDs, target.ID) || m.SpouseIs(target.ID) {
			ids = append(ids, m.ID)
		}
	}
	return domain.RemoveID(domain.NormalizeIDs(ids), target.ID)
}

// GetMember returns a committed member.
func (s *Service) GetMember(id string) (domain.Member, error) {
	m, ok := s.store.GetMember(id)
	if !ok {
		return domain.Member{}, domain.NotFoundError{Entity: domain.EntityMember, ID: id}
	}
	return m, nil
}

// ListMembers returns every committed member sorted by id.
func (s *Service) ListMembers() []domain.Member {
	return s.store.ListMembers()
}
