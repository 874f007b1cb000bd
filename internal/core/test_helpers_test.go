package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"famgraph/pkg/domain"
)

// strPtr is a lightweight helper for pointer fields in core package tests.
func strPtr(v string) *string {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func memberInput(first string, generation int) domain.MemberInput {
	birth := domain.NewDate(1950+generation*25, time.March, 1)
	return domain.MemberInput{
		FirstName:  first,
		LastName:   "Lee",
		BirthDate:  &birth,
		Gender:     domain.GenderOther,
		Generation: intPtr(generation),
	}
}

func mustCreate(t *testing.T, svc *Service, input domain.MemberInput) domain.Member {
	t.Helper()
	m, _, err := svc.CreateMember(context.Background(), input)
	if err != nil {
		t.Fatalf("create %s: %v", input.FirstName, err)
	}
	return m
}

func mustGet(t *testing.T, svc *Service, id string) domain.Member {
	t.Helper()
	m, err := svc.GetMember(id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return m
}

// assertConsistent checks every graph invariant over the committed state.
func assertConsistent(t *testing.T, svc *Service) {
	t.Helper()
	members := svc.ListMembers()
	view := staticView(members)
	res, err := NewDefaultRulesEngine().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate invariants: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("graph inconsistent: %+v", res.Blocking())
	}
}

type staticView []domain.Member

func (v staticView) ListMembers() []domain.Member { return append([]domain.Member(nil), v...) }

func (v staticView) FindMember(id string) (domain.Member, bool) {
	for _, m := range v {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Member{}, false
}

var errInjected = errors.New("injected store failure")

// faultyStore wraps a store and fails the nth compare-and-swap write inside
// every transaction.
type faultyStore struct {
	domain.PersistentStore
	failOnWrite int
}

func (s *faultyStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.PersistentStore.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(&faultyTx{Transaction: tx, failOn: s.failOnWrite})
	})
}

type faultyTx struct {
	domain.Transaction
	failOn int
	writes int
}

func (tx *faultyTx) CompareAndUpdateMember(id string, expected int64, mutator func(*domain.Member) error) (domain.Member, error) {
	tx.writes++
	if tx.writes == tx.failOn {
		return domain.Member{}, errInjected
	}
	return tx.Transaction.CompareAndUpdateMember(id, expected, mutator)
}

// stallingStore holds each transaction until its context ends.
type stallingStore struct {
	domain.PersistentStore
}

func (s stallingStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.PersistentStore.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			n++
		}
	}
	return n
}
