package testutil

import (
	"context"
	"testing"
)

func TestStubDBRoundTrip(t *testing.T) {
	db, conn := NewStubDB()
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO kv(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=EXCLUDED.payload`, "a", []byte("1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO kv(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=EXCLUDED.payload`, "a", []byte("2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = $1`, "a").Scan(&payload); err != nil {
		t.Fatalf("select: %v", err)
	}
	if string(payload) != "2" || len(conn.Rows("kv")) != 1 {
		t.Fatalf("unexpected state %q rows=%d", payload, len(conn.Rows("kv")))
	}
	res, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = $1`, "a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
	if _, err := db.ExecContext(ctx, `UPDATE kv SET payload = $1`, "x"); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
}
