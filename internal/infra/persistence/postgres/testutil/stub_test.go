package testutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
)

func TestStubDBStoresAndQueriesMembers(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	upsert := upsertMember + " SET version=EXCLUDED.version, payload=EXCLUDED.payload"
	for _, version := range []int64{1, 2} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{
			{Value: "m-1"},
			{Value: version},
			{Value: []byte(`{}`)},
		}); err != nil {
			t.Fatalf("ExecContext upsert: %v", err)
		}
	}
	if row, ok := conn.Members["m-1"]; !ok || row.Version != 2 || len(conn.Members) != 1 {
		t.Fatalf("expected upsert to replace the row, got %v", conn.Members)
	}

	if _, err := conn.ExecContext(ctx, deleteMember, []driver.NamedValue{{Value: "m-1"}}); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if len(conn.Members) != 0 {
		t.Fatalf("expected member row to be deleted, got %v", conn.Members)
	}

	conn.Members["m-2"] = MemberRow{Version: 1, Payload: []byte("P")}
	rows, err := conn.QueryContext(ctx, selectMembers, nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "m-2" || string(dest[1].([]byte)) != "P" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBRejectsOtherStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	for _, query := range []string{
		"TRUNCATE TABLE members",
		"INSERT INTO other (id) VALUES ($1)",
		"DELETE FROM members",
	} {
		if _, err := conn.ExecContext(ctx, query, nil); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected %q to be rejected, got %v", query, err)
		}
	}
	if _, err := conn.QueryContext(ctx, "SELECT * FROM other", nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected select on other table to be rejected, got %v", err)
	}
}
