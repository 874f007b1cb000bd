package core

import (
	"fmt"

	"famgraph/pkg/domain"
)

// EdgeOp names the kind of back-reference edit applied to a neighbour.
type EdgeOp string

// Edge edit kinds.
const (
	EdgeAddChild     EdgeOp = "add_child"
	EdgeRemoveChild  EdgeOp = "remove_child"
	EdgeRemoveParent EdgeOp = "remove_parent"
	EdgeSetSpouse    EdgeOp = "set_spouse"
	EdgeClearSpouse  EdgeOp = "clear_spouse"
)

// EdgeEdit is one neighbour write performed by the synchronizer or the
// delete cascade.
type EdgeEdit struct {
	MemberID string
	Op       EdgeOp
	TargetID string
}

func (e EdgeEdit) String() string {
	return fmt.Sprintf("%s %s %s", e.MemberID, e.Op, e.TargetID)
}

// SyncRequest describes the edge fields of one member before and after a
// mutation. Old values are empty for a newly created member.
type SyncRequest struct {
	MemberID     string
	OldParentIDs []string
	NewParentIDs []string
	OldSpouseID  *string
	NewSpouseID  *string
}

// Synchronizer applies the back-references implied by a change to one
// member's parent_ids or spouse_id. It only writes neighbours and never
// commits; the caller owns the transaction.
type Synchronizer struct {
	logger Logger
}

// NewSynchronizer builds a synchronizer that logs edge edits at debug level.
func NewSynchronizer(logger Logger) *Synchronizer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Synchronizer{logger: logger}
}

// Apply diffs the request and updates every affected neighbour inside tx.
// Neighbour writes are compare-and-swap against the version read in the same
// transaction.
func (s *Synchronizer) Apply(tx domain.Transaction, req SyncRequest) ([]EdgeEdit, error) {
	var edits []EdgeEdit
	added, removed := domain.DiffIDs(domain.NormalizeIDs(req.OldParentIDs), domain.NormalizeIDs(req.NewParentIDs))

	for _, parentID := range removed {
		parent, ok := tx.FindMember(parentID)
		if !ok {
			continue
		}
		if !domain.ContainsID(parent.ChildrenIDs, req.MemberID) {
			continue
		}
		if _, err := tx.CompareAndUpdateMember(parentID, parent.Version, func(m *domain.Member) error {
			m.ChildrenIDs = domain.RemoveID(m.ChildrenIDs, req.MemberID)
			return nil
		}); err != nil {
			return nil, err
		}
		edits = s.note(edits, EdgeEdit{MemberID: parentID, Op: EdgeRemoveChild, TargetID: req.MemberID})
	}

	for _, parentID := range added {
		if parentID == req.MemberID {
			return nil, domain.NewValidationError("parent_ids", "member cannot be its own parent")
		}
		parent, ok := tx.FindMember(parentID)
		if !ok {
			return nil, domain.NotFoundError{Entity: domain.EntityMember, ID: parentID}
		}
		if isAncestor(tx, req.MemberID, parentID) {
			return nil, domain.NewValidationError("parent_ids", fmt.Sprintf("parent %s is a descendant of %s", parentID, req.MemberID))
		}
		if domain.ContainsID(parent.ChildrenIDs, req.MemberID) {
			continue
		}
		if _, err := tx.CompareAndUpdateMember(parentID, parent.Version, func(m *domain.Member) error {
			m.ChildrenIDs = domain.AddID(m.ChildrenIDs, req.MemberID)
			return nil
		}); err != nil {
			return nil, err
		}
		edits = s.note(edits, EdgeEdit{MemberID: parentID, Op: EdgeAddChild, TargetID: req.MemberID})
	}

	oldSpouse, newSpouse := domain.StringValue(req.OldSpouseID), domain.StringValue(req.NewSpouseID)
	if oldSpouse == newSpouse {
		return edits, nil
	}
	if oldSpouse != "" {
		spouse, ok := tx.FindMember(oldSpouse)
		if ok && spouse.SpouseIs(req.MemberID) {
			if _, err := tx.CompareAndUpdateMember(oldSpouse, spouse.Version, func(m *domain.Member) error {
				m.SpouseID = nil
				return nil
			}); err != nil {
				return nil, err
			}
			edits = s.note(edits, EdgeEdit{MemberID: oldSpouse, Op: EdgeClearSpouse, TargetID: req.MemberID})
		}
	}
	if newSpouse != "" {
		if newSpouse == req.MemberID {
			return nil, domain.NewValidationError("spouse_id", "member cannot be its own spouse")
		}
		spouse, ok := tx.FindMember(newSpouse)
		if !ok {
			return nil, domain.NotFoundError{Entity: domain.EntityMember, ID: newSpouse}
		}
		if spouse.HasSpouse() && !spouse.SpouseIs(req.MemberID) {
			return nil, domain.NewValidationError("spouse_id", fmt.Sprintf("member %s is already married to %s", newSpouse, *spouse.SpouseID))
		}
		if !spouse.SpouseIs(req.MemberID) {
			if _, err := tx.CompareAndUpdateMember(newSpouse, spouse.Version, func(m *domain.Member) error {
				m.SpouseID = domain.StringPtr(req.MemberID)
				return nil
			}); err != nil {
				return nil, err
			}
			edits = s.note(edits, EdgeEdit{MemberID: newSpouse, Op: EdgeSetSpouse, TargetID: req.MemberID})
		}
	}
	return edits, nil
}

func (s *Synchronizer) note(edits []EdgeEdit, edit EdgeEdit) []EdgeEdit {
	s.logger.Debug("edge edit", "member_id", edit.MemberID, "op", string(edit.Op), "target_id", edit.TargetID)
	return append(edits, edit)
}

// isAncestor reports whether ancestorID is reachable from memberID by
// following parent_ids upwards.
func isAncestor(tx domain.Transaction, ancestorID, memberID string) bool {
	seen := map[string]struct{}{memberID: {}}
	queue := []string{memberID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		m, ok := tx.FindMember(current)
		if !ok {
			continue
		}
		for _, parentID := range m.ParentIDs {
			if parentID == ancestorID {
				return true
			}
			if _, ok := seen[parentID]; ok {
				continue
			}
			seen[parentID] = struct{}{}
			queue = append(queue, parentID)
		}
	}
	return false
}
