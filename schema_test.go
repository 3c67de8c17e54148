package nxsqlite

import (
	"testing"

	"github.com/ninjasync/nxsqlite/sqlitepool"
)

func schemaCount(t *testing.T, conn *Conn, schema string) int {
	t.Helper()
	n, err := ExecuteScalar[int](conn.CreateCommand("SELECT count(*) FROM " + quoteIdent(schema) + ".sqlite_schema"))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestDropAll(t *testing.T) {
	conn := openTestConn(t, Config{})
	err := sqlitepool.ExecScript(conn.Handle(), `
		ATTACH 'file:s1?mode=memory' AS "db two";
		BEGIN;
		CREATE TABLE "db two".customer (
			cust_id INTEGER PRIMARY KEY,
			cust_name TEXT,
			cust_addr TEXT
		);
		CREATE INDEX "db two".custname ON customer (cust_name);
		CREATE VIEW "db two".customer_address AS
			SELECT cust_id, cust_addr FROM "db two".customer;
		CREATE TRIGGER "db two".cust_addr_chng
		INSTEAD OF UPDATE OF cust_addr ON "db two".customer_address
		BEGIN
			UPDATE customer SET cust_addr=NEW.cust_addr
				WHERE cust_id=NEW.cust_id;
		END;

		-- Creates an auto-index that goes with its table.
		CREATE TABLE "db two".textkey (key TEXT PRIMARY KEY, val INTEGER);

		CREATE TABLE customer (
			cust_id INTEGER PRIMARY KEY,
			cust_name TEXT,
			cust_addr TEXT
		);
		CREATE INDEX custname ON customer (cust_name);
		CREATE VIEW customer_address AS
			SELECT cust_id, cust_addr FROM customer;
		CREATE TRIGGER cust_addr_chng
		INSTEAD OF UPDATE OF cust_addr ON customer_address
		BEGIN
			UPDATE customer SET cust_addr=NEW.cust_addr
				WHERE cust_id=NEW.cust_id;
		END;

		COMMIT;`)
	if err != nil {
		t.Fatal(err)
	}

	if err := DropAll(conn, "db two"); err != nil {
		t.Fatal(err)
	}
	if count := schemaCount(t, conn, "db two"); count != 0 {
		t.Fatalf("%d unexpected 'db two' schema entries", count)
	}
	if count := schemaCount(t, conn, "main"); count != 4 {
		t.Fatalf("%d main schema entries, want 4", count)
	}

	if err := DropAll(conn, ""); err != nil {
		t.Fatal(err)
	}
	if count := schemaCount(t, conn, "main"); count != 0 {
		t.Fatalf("%d unexpected main schema entries", count)
	}
}

func TestCopyAll(t *testing.T) {
	conn := openTestConn(t, Config{})
	err := sqlitepool.ExecScript(conn.Handle(), `
		BEGIN;
		CREATE TABLE customer (
			cust_id INTEGER PRIMARY KEY,
			cust_name TEXT,
			cust_addr TEXT
		);
		CREATE INDEX custname ON customer (cust_name);
		CREATE VIEW customer_address AS
			SELECT cust_id, cust_addr FROM customer;
		CREATE TRIGGER cust_addr_chng
		INSTEAD OF UPDATE OF cust_addr ON customer_address
		BEGIN
			UPDATE customer SET cust_addr=NEW.cust_addr
				WHERE cust_id=NEW.cust_id;
		END;
		COMMIT;
		INSERT INTO customer (cust_id, cust_name, cust_addr) VALUES (1, 'joe', 'eldorado');

		-- Creates an auto-index we should not copy.
		CREATE TABLE textkey (key TEXT PRIMARY KEY, val INTEGER);

		ATTACH 'file:s2?mode=memory' AS "db two";
		`)
	if err != nil {
		t.Fatal(err)
	}

	if err := CopyAll(conn, "db two", "main"); err != nil {
		t.Fatal(err)
	}

	name, err := ExecuteScalar[string](conn.CreateCommand(`SELECT cust_name FROM "db two".customer WHERE cust_id=1`))
	if err != nil {
		t.Fatal(err)
	}
	if name != "joe" {
		t.Fatalf("name=%q, want %q", name, "joe")
	}
	// Five copied objects plus the auto-index recreated with textkey.
	if count := schemaCount(t, conn, "db two"); count != 6 {
		t.Fatalf("dst schema count=%d, want 6", count)
	}

	if err := CopyAll(conn, "main", ""); err == nil {
		t.Fatal("CopyAll onto itself succeeded")
	}
}
