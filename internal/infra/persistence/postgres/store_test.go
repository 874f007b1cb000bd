package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"famgraph/internal/infra/persistence/postgres/testutil"
	"famgraph/pkg/domain"
)

func stubMember(first string) domain.Member {
	return domain.Member{
		FirstName:  first,
		LastName:   "Pg",
		BirthDate:  domain.NewDate(1960, time.February, 2),
		Gender:     domain.GenderMale,
		Generation: 1,
	}
}

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreCreatesTableAndLoadsRows(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, err := json.Marshal(domain.Member{Base: domain.Base{ID: "m-1"}, FirstName: "Loaded", Version: 4})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Members["m-1"] = testutil.MemberRow{Version: 4, Payload: payload}

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got, ok := store.GetMember("m-1")
	if !ok || got.FirstName != "Loaded" || got.Version != 4 {
		t.Fatalf("expected member loaded from table, got %+v", got)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS MEMBERS") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected members DDL to be applied, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionUpsertsChangedRows(t *testing.T) {
	store, conn := openStubStore(t)
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		m, err := tx.CreateMember(stubMember("Row"))
		id = m.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := conn.Members[id]; !ok || len(conn.Members) != 1 {
		t.Fatalf("expected one member row, got %v", conn.Members)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateMember(id, func(m *domain.Member) error {
			m.Bio = "updated"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if row := conn.Members[id]; len(conn.Members) != 1 || row.Version != 2 {
		t.Fatalf("expected upsert to replace the row, got %v", conn.Members)
	}

	before := len(conn.Execs)
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("noop: %v", err)
	}
	if len(conn.Execs) != before {
		t.Fatalf("expected no statements for an empty diff, got %v", conn.Execs[before:])
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteMember(id)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(conn.Members) != 0 {
		t.Fatalf("expected member row deleted, got %v", conn.Members)
	}
}

func TestRunInTransactionDiscardsStateOnFlushFailure(t *testing.T) {
	store, conn := openStubStore(t)
	conn.FailCommit = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateMember(stubMember("Lost"))
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if len(store.ListMembers()) != 0 {
		t.Fatalf("expected no members after a failed flush")
	}

	conn.FailCommit = false
	conn.FailBegin = true
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateMember(stubMember("Lost"))
		return err
	}); err == nil {
		t.Fatalf("expected begin failure")
	}
}

func TestRunInTransactionFlushFailureNeverVisibleToReaders(t *testing.T) {
	store, conn := openStubStore(t)
	conn.FailCommit = true

	done := make(chan struct{})
	seen := make(chan int, 1)
	go func() {
		maxSeen := 0
		for {
			select {
			case <-done:
				seen <- maxSeen
				return
			default:
			}
			if n := len(store.ListMembers()); n > maxSeen {
				maxSeen = n
			}
		}
	}()

	for i := 0; i < 500; i++ {
		if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.CreateMember(stubMember("Lost"))
			return err
		}); err == nil {
			close(done)
			t.Fatalf("expected commit failure on attempt %d", i)
		}
	}
	close(done)
	if n := <-seen; n != 0 {
		t.Fatalf("reader observed %d members from failed flushes", n)
	}
}

func TestRunInTransactionPropagatesFnError(t *testing.T) {
	store, conn := openStubStore(t)
	boom := errors.New("boom")
	before := len(conn.Execs)
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(conn.Execs) != before {
		t.Fatalf("expected no writes after a failed transaction")
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore("", nil); err == nil {
		restore()
		t.Fatalf("expected open error")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected ping failure")
	}

	db, conn = testutil.NewStubDB()
	conn.FailSelect = true
	restore2 := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore2()
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "select members") {
		t.Fatalf("expected select failure, got %v", err)
	}
}

func TestNewStoreRejectsCorruptPayload(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.Members["bad"] = testutil.MemberRow{Version: 1, Payload: []byte("{")}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "decode member bad") {
		t.Fatalf("expected decode failure, got %v", err)
	}
}
