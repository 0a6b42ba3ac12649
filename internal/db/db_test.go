package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/prep/internal/db"
)

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := dbpkg.New(ctx, dbpkg.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if d.GetConn() == nil {
		t.Fatalf("expected non-nil sql.DB from GetConn")
	}
	if d.Driver() != dbpkg.DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", d.Driver())
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := dbpkg.New(context.Background(), "mysql", "whatever"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestExec_QueryRow_QueryRows(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "", ":memory:")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("Exec create table returned error: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := d.Exec(ctx, `INSERT INTO items (id, name) VALUES (?, ?)`, id, "name-"+id); err != nil {
			t.Fatalf("Exec insert returned error: %v", err)
		}
	}

	var name string
	if err := d.QueryRow(ctx, `SELECT name FROM items WHERE id = ?`, "b").Scan(&name); err != nil {
		t.Fatalf("QueryRow scan returned error: %v", err)
	}
	if name != "name-b" {
		t.Fatalf("expected name-b, got %q", name)
	}

	rows, err := d.QueryRows(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		t.Fatalf("QueryRows returned error: %v", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, dbpkg.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	tx, err := d.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO items (id) VALUES (?)`, "x"); err != nil {
		t.Fatalf("tx insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	// second rollback is a no-op
	if err := tx.Rollback(); err != nil {
		t.Fatalf("second rollback: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM items`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", count)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, dbpkg.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(ctx, `CREATE TABLE parents (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create parents: %v", err)
	}
	if _, err := d.Exec(ctx, `CREATE TABLE children (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parents(id))`); err != nil {
		t.Fatalf("create children: %v", err)
	}
	if _, err := d.Exec(ctx, `INSERT INTO children (id, parent_id) VALUES ('c', 'missing')`); err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestPragmasSurviveReconnect(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prep.db")
	d, err := dbpkg.New(ctx, dbpkg.DriverSQLite, path+"?_txlock=immediate")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	// every statement below runs on a freshly opened connection
	d.GetConn().SetMaxIdleConns(0)

	for i := 0; i < 3; i++ {
		var fk, timeout int
		if err := d.QueryRow(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
			t.Fatalf("read foreign_keys: %v", err)
		}
		if err := d.QueryRow(ctx, `PRAGMA busy_timeout`).Scan(&timeout); err != nil {
			t.Fatalf("read busy_timeout: %v", err)
		}
		if fk != 1 || timeout != 5000 {
			t.Fatalf("connection %d: foreign_keys=%d busy_timeout=%d", i, fk, timeout)
		}
	}
}
