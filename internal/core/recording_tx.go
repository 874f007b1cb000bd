package core

import "famgraph/pkg/domain"

// recordingTx decorates a transaction and keeps the member writes it sees so
// the service can audit them after commit.
type recordingTx struct {
	domain.Transaction
	changes []domain.Change
}

func (tx *recordingTx) CreateMember(m domain.Member) (domain.Member, error) {
	created, err := tx.Transaction.CreateMember(m)
	if err != nil {
		return domain.Member{}, err
	}
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityMember, Action: domain.ActionCreate, After: created.Clone()})
	return created, nil
}

func (tx *recordingTx) UpdateMember(id string, mutator func(*domain.Member) error) (domain.Member, error) {
	before, _ := tx.Transaction.FindMember(id)
	updated, err := tx.Transaction.UpdateMember(id, mutator)
	if err != nil {
		return domain.Member{}, err
	}
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityMember, Action: domain.ActionUpdate, Before: before, After: updated.Clone()})
	return updated, nil
}

func (tx *recordingTx) CompareAndUpdateMember(id string, expected int64, mutator func(*domain.Member) error) (domain.Member, error) {
	before, _ := tx.Transaction.FindMember(id)
	updated, err := tx.Transaction.CompareAndUpdateMember(id, expected, mutator)
	if err != nil {
		return domain.Member{}, err
	}
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityMember, Action: domain.ActionUpdate, Before: before, After: updated.Clone()})
	return updated, nil
}

func (tx *recordingTx) DeleteMember(id string) error {
	before, _ := tx.Transaction.FindMember(id)
	if err := tx.Transaction.DeleteMember(id); err != nil {
		return err
	}
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityMember, Action: domain.ActionDelete, Before: before})
	return nil
}
