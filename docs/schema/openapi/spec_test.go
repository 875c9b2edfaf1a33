package openapi

import (
	"bytes"
	"slices"
	"testing"
)

func TestSpecReturnsCopy(t *testing.T) {
	spec := Spec()
	if !bytes.HasPrefix(spec, []byte("openapi: 3")) {
		t.Fatalf("unexpected document head %q", spec[:20])
	}
	spec[0] ^= 0xFF
	if bytes.Equal(spec, Document) {
		t.Fatalf("Spec did not return a copy")
	}
}

func TestOperationsResolveAliasesAndParams(t *testing.T) {
	ops, err := Operations()
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	for _, want := range []string{
		"GET /bakeries/:id/photo",
		"PUT /breads/:id/photo",
		"GET /exports/:id/files/:name",
		"POST /bakeries/:id/favorite",
	} {
		if !slices.Contains(ops, want) {
			t.Fatalf("missing %s in %v", want, ops)
		}
	}
	if !slices.IsSorted(ops) {
		t.Fatalf("operations must be sorted")
	}
}
