package sqldocs

import (
	"strings"
	"testing"
)

func TestBundlesCreateStateTable(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite, "postgres": Postgres} {
		if !strings.HasPrefix(strings.TrimSpace(ddl), "CREATE TABLE IF NOT EXISTS state") {
			t.Fatalf("%s: unexpected ddl %q", name, ddl)
		}
		if !strings.Contains(ddl, "bucket TEXT PRIMARY KEY") {
			t.Fatalf("%s: state table must key on bucket", name)
		}
	}
	if !strings.Contains(Postgres, "JSONB") {
		t.Fatalf("postgres payload should be jsonb")
	}
}
