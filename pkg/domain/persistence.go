package domain

import "context"

// Transaction exposes the member operations that a persistence implementation
// must support within an atomic scope. Reads observe the transaction's own
// pending writes.
type Transaction interface {
	Snapshot() TransactionView
	FindMember(id string) (Member, bool)
	FindMembers(ids []string) ([]Member, error)
	CreateMember(Member) (Member, error)
	UpdateMember(id string, mutator func(*Member) error) (Member, error)
	// CompareAndUpdateMember applies mutator only when the stored version
	// equals expected, returning ConflictError otherwise.
	CompareAndUpdateMember(id string, expected int64, mutator func(*Member) error) (Member, error)
	DeleteMember(id string) error
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListMembers() []Member
	FindMember(id string) (Member, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetMember(id string) (Member, bool)
	GetMembers(ids []string) []Member
	ListMembers() []Member
}
