// Package testutil provides a stub database/sql driver for postgres store
// tests. It only understands the statements the store issues against the
// members table and rejects anything else.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	createMembers = "CREATE TABLE IF NOT EXISTS members"
	upsertMember  = "INSERT INTO members (id,version,payload) VALUES ($1,$2,$3) ON CONFLICT(id) DO UPDATE"
	deleteMember  = "DELETE FROM members WHERE id = $1"
	selectMembers = "SELECT id, payload FROM members"
)

// ErrUnsupported is returned for statements outside the members table shapes.
var ErrUnsupported = errors.New("stub: unsupported statement")

// MemberRow is one stored members row.
type MemberRow struct {
	Version int64
	Payload []byte
}

// StubConn records executed statements and keeps member rows keyed by id.
type StubConn struct {
	Execs      []string
	Members    map[string]MemberRow
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailSelect bool
	RowsErr    error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Members: make(map[string]MemberRow)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, ErrUnsupported }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	switch {
	case strings.HasPrefix(query, createMembers):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(query, upsertMember):
		if len(args) != 3 {
			return nil, fmt.Errorf("upsert: want 3 args, got %d", len(args))
		}
		id, _ := args[0].Value.(string)
		version, _ := args[1].Value.(int64)
		payload, _ := args[2].Value.([]byte)
		c.Members[id] = MemberRow{Version: version, Payload: payload}
		return driver.RowsAffected(1), nil
	case query == deleteMember:
		if len(args) != 1 {
			return nil, fmt.Errorf("delete: want 1 arg, got %d", len(args))
		}
		id, _ := args[0].Value.(string)
		if _, ok := c.Members[id]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.Members, id)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if query != selectMembers {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, query)
	}
	if c.FailSelect {
		return nil, errors.New("query fail for members")
	}
	ids := make([]string, 0, len(c.Members))
	for id := range c.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := &stubRows{err: c.RowsErr}
	for _, id := range ids {
		rows.rows = append(rows.rows, []driver.Value{id, c.Members[id].Payload})
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"id", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
