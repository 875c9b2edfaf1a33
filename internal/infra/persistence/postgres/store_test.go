package postgres

import (
	"breadstamp/internal/infra/persistence/postgres/testutil"
	"breadstamp/pkg/domain"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func withStub(t *testing.T) *testutil.StubConn {
	t.Helper()
	_, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != defaultDriver || dsn != defaultDSN {
			t.Fatalf("unexpected open %s %s", driver, dsn)
		}
		return conn.Open(), nil
	})
	t.Cleanup(restore)
	return conn
}

func TestNewStoreEnsuresTableAndLoadsSnapshot(t *testing.T) {
	conn := withStub(t)
	bakeries := map[string]domain.Bakery{"b1": {Base: domain.Base{ID: "b1"}, Name: "성심당"}}
	payload, _ := json.Marshal(bakeries)
	conn.State["bakeries"] = payload
	conn.State["legacy"] = []byte(`{"ignored":true}`)

	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.HasPrefix(strings.TrimSpace(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	got, ok := store.GetBakery("b1")
	if !ok || got.Name != "성심당" {
		t.Fatalf("expected hydrated bakery, got %+v", got)
	}
}

func TestRunInTransactionPersistsEveryBucket(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		b, err := tx.CreateBakery(domain.Bakery{Name: "나폴레옹"})
		if err != nil {
			return err
		}
		_, err = tx.CreateBread(domain.Bread{Name: "사라다빵", Category: domain.CategoryOther, Rating: 4, BakeryID: &b.ID})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	buckets := conn.Buckets()
	if strings.Join(buckets, ",") != "achievements,bakeries,breads" {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	raw, _ := conn.Payload("breads")
	var breads map[string]domain.Bread
	if err := json.Unmarshal(raw, &breads); err != nil || len(breads) != 1 {
		t.Fatalf("unexpected breads payload %s (%v)", raw, err)
	}
}

func TestPersistErrorsSurface(t *testing.T) {
	cases := map[string]func(*testutil.StubConn){
		"begin":  func(c *testutil.StubConn) { c.FailBegin = true },
		"commit": func(c *testutil.StubConn) { c.FailCommit = true },
		"exec":   func(c *testutil.StubConn) { c.FailExec = true },
	}
	for name, arm := range cases {
		t.Run(name, func(t *testing.T) {
			conn := withStub(t)
			store, err := NewStore(context.Background(), "", nil)
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			arm(conn)
			if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.CreateBakery(domain.Bakery{Name: "x"})
				return err
			}); err == nil {
				t.Fatalf("expected %s failure to surface", name)
			}
		})
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(context.Background(), "postgres://x", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	conn := withStub(t)
	conn.FailPing = true
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
	conn.FailPing = false
	conn.RowsErr = errors.New("rows")
	conn.State["bakeries"] = []byte(`{}`)
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "iterate state") {
		t.Fatalf("expected rows error, got %v", err)
	}
	conn.RowsErr = nil
	conn.State["bakeries"] = []byte(`not json`)
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "decode bakeries") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
