package core

import (
	"testing"

	"breadstamp/testutil"
)

func TestCoreDoesNotImportAdapters(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.PrefixForbidden("internal/adapters", "cmd"), "adapters depend on core, never the reverse")
}
