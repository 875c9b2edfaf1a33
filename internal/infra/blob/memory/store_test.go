package memory

import (
	"breadstamp/internal/blob/core"
	"bytes"
	"context"
	"io"
	"testing"
)

func TestGetReturnsPrivateCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("data")), core.PutOptions{Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	b[0] = 'X'
	info.Metadata["a"] = "2"
	_, rc2, _ := store.Get(ctx, "k")
	b2, _ := io.ReadAll(rc2)
	head, _ := store.Head(ctx, "k")
	if string(b2) != "data" || head.Metadata["a"] != "1" {
		t.Fatalf("store state leaked: %q %+v", b2, head)
	}
	if _, err := store.Put(ctx, "  ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
