package domain

import (
	"testing"

	"breadstamp/testutil"
)

func TestDomainHasNoInternalImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain types are shared by every layer")
}
