package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubConnStoresAndQueriesBuckets(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := conn.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload", []driver.NamedValue{
			{Value: "bakeries"},
			{Value: []byte(payload)},
		}); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if got, _ := conn.Payload("bakeries"); string(got) != `{"a":2}` {
		t.Fatalf("expected upsert to replace payload, got %s", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "bakeries" {
		t.Fatalf("unexpected row: %v", dest)
	}
}

func TestStubConnRejectsUnknownStatements(t *testing.T) {
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(context.Background(), "UPDATE state SET x=1", nil); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
	conn.FailPing = true
	if err := conn.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure")
	}
}
