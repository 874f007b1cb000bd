// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"famgraph/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Member aliases domain.Member for in-memory persistence operations.
	Member = domain.Member
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	members map[string]Member
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Members map[string]Member `json:"members"`
}

func newMemoryState() memoryState {
	return memoryState{members: make(map[string]Member)}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Members: make(map[string]Member, len(state.members))}
	for k, v := range state.members {
		s.Members[k] = v.Clone()
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Members {
		state.members[k] = v.Clone()
	}
	return state
}

// migrateSnapshot repairs snapshots written by older builds or edited by
// hand: self and dangling references are dropped, one-sided parent edges are
// completed and one-sided spouse pointers are completed or cleared.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Members == nil {
		snapshot.Members = map[string]Member{}
	}
	members := snapshot.Members
	exists := func(id string) bool {
		_, ok := members[id]
		return ok
	}

	ids := make([]string, 0, len(members))
	for id, m := range members {
		if m.ID == "" {
			m.ID = id
		}
		if m.ID != id {
			delete(members, id)
			continue
		}
		m.ParentIDs = filterIDs(m.ParentIDs, func(ref string) bool { return ref != id && exists(ref) })
		m.ChildrenIDs = filterIDs(m.ChildrenIDs, func(ref string) bool { return ref != id && exists(ref) })
		if m.SpouseID != nil && (*m.SpouseID == id || !exists(*m.SpouseID)) {
			m.SpouseID = nil
		}
		if m.Version < 1 {
			m.Version = 1
		}
		members[id] = m
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := members[id]
		for _, parentID := range m.ParentIDs {
			parent := members[parentID]
			parent.ChildrenIDs = domain.AddID(parent.ChildrenIDs, id)
			members[parentID] = parent
		}
	}
	for _, id := range ids {
		m := members[id]
		for _, childID := range m.ChildrenIDs {
			child := members[childID]
			if !domain.ContainsID(child.ParentIDs, id) {
				child.ParentIDs = domain.AddID(child.ParentIDs, id)
				members[childID] = child
			}
		}
	}
	for _, id := range ids {
		m := members[id]
		if !m.HasSpouse() {
			continue
		}
		spouse := members[*m.SpouseID]
		switch {
		case spouse.SpouseIs(id):
		case !spouse.HasSpouse():
			spouse.SpouseID = domain.StringPtr(id)
			members[spouse.ID] = spouse
		default:
			m.SpouseID = nil
			members[id] = m
		}
	}
	return snapshot
}

func filterIDs(values []string, keep func(string) bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return domain.NormalizeIDs(out)
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.members {
		cloned.members[k] = v.Clone()
	}
	return cloned
}

func sortedMembers(members map[string]Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Store provides an in-memory transactional store for the family graph.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider, mainly for deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// Transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// TransactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListMembers returns all members within the transaction snapshot, sorted by id.
func (v transactionView) ListMembers() []Member {
	return sortedMembers(v.state.members)
}

// FindMember retrieves a member by id from the snapshot.
func (v transactionView) FindMember(id string) (Member, bool) {
	m, ok := v.state.members[id]
	if !ok {
		return Member{}, false
	}
	return m.Clone(), true
}

// CommitFunc makes a transaction durable. It runs under the store's write
// lock after the rules pass and before the new state becomes visible, so
// readers never observe a transaction the backend rejected. An error
// discards the transaction.
type CommitFunc func(ctx context.Context, diff SnapshotDiff) error

// RunInTransaction executes fn within a transactional copy of the store state.
// Nothing is committed when fn fails, a blocking rule fires or ctx ends first.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit is RunInTransaction with a durability hook. The
// hook receives the rows touched by the transaction and is skipped when the
// transaction changed nothing.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit CommitFunc) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if commit != nil {
		if diff := diffChanges(s.state, tx.state, tx.changes); !diff.Empty() {
			if err := commit(ctx, diff); err != nil {
				return result, err
			}
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindMember exposes member lookup within the transaction scope.
func (tx *transaction) FindMember(id string) (Member, bool) {
	m, ok := tx.state.members[id]
	if !ok {
		return Member{}, false
	}
	return m.Clone(), true
}

// FindMembers returns the members for ids in the order requested. The first
// missing id yields a NotFoundError.
func (tx *transaction) FindMembers(ids []string) ([]Member, error) {
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		m, ok := tx.state.members[id]
		if !ok {
			return nil, domain.NotFoundError{Entity: domain.EntityMember, ID: id}
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

// CreateMember stores a new member within the transaction.
func (tx *transaction) CreateMember(m Member) (Member, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.members[m.ID]; exists {
		return Member{}, fmt.Errorf("member %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	m.Version = 1
	m.ParentIDs = domain.NormalizeIDs(m.ParentIDs)
	m.ChildrenIDs = domain.NormalizeIDs(m.ChildrenIDs)
	tx.state.members[m.ID] = m.Clone()
	tx.recordChange(Change{Entity: domain.EntityMember, Action: domain.ActionCreate, After: m.Clone()})
	return m.Clone(), nil
}

// UpdateMember mutates a member using the provided mutator function.
func (tx *transaction) UpdateMember(id string, mutator func(*Member) error) (Member, error) {
	current, ok := tx.state.members[id]
	if !ok {
		return Member{}, domain.NotFoundError{Entity: domain.EntityMember, ID: id}
	}
	return tx.applyUpdate(current, mutator)
}

// CompareAndUpdateMember mutates a member only when its version matches expected.
func (tx *transaction) CompareAndUpdateMember(id string, expected int64, mutator func(*Member) error) (Member, error) {
	current, ok := tx.state.members[id]
	if !ok {
		return Member{}, domain.NotFoundError{Entity: domain.EntityMember, ID: id}
	}
	if current.Version != expected {
		return Member{}, domain.ConflictError{Entity: domain.EntityMember, ID: id, Expected: expected, Actual: current.Version}
	}
	return tx.applyUpdate(current, mutator)
}

func (tx *transaction) applyUpdate(current Member, mutator func(*Member) error) (Member, error) {
	before := current.Clone()
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return Member{}, err
	}
	next.ID = before.ID
	next.CreatedAt = before.CreatedAt
	next.UpdatedAt = tx.now
	next.Version = before.Version + 1
	next.ParentIDs = domain.NormalizeIDs(next.ParentIDs)
	next.ChildrenIDs = domain.NormalizeIDs(next.ChildrenIDs)
	tx.state.members[before.ID] = next.Clone()
	tx.recordChange(Change{Entity: domain.EntityMember, Action: domain.ActionUpdate, Before: before, After: next.Clone()})
	return next.Clone(), nil
}

// DeleteMember removes a member from the transaction state. Callers are
// responsible for clearing references first; the rules engine rejects
// dangling edges at commit.
func (tx *transaction) DeleteMember(id string) error {
	current, ok := tx.state.members[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityMember, ID: id}
	}
	delete(tx.state.members, id)
	tx.recordChange(Change{Entity: domain.EntityMember, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetMember retrieves a member by ID from committed state.
func (s *Store) GetMember(id string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.members[id]
	if !ok {
		return Member{}, false
	}
	return m.Clone(), true
}

// GetMembers returns the committed members matching ids, skipping unknown ids.
func (s *Store) GetMembers(ids []string) []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.state.members[id]; ok {
			out = append(out, m.Clone())
		}
	}
	return out
}

// ListMembers returns all members from committed state, sorted by id.
func (s *Store) ListMembers() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMembers(s.state.members)
}
