// Package testutil holds layering and documentation checks shared by package
// tests. The domain package stays free of internal packages, and screen
// logic never reaches past core into storage or transport.
package testutil

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Module is the import path prefix of this repository.
const Module = "breadstamp"

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// PrefixForbidden returns a predicate matching imports equal to or nested
// under any of the given module-relative prefixes, e.g. "internal/infra".
func PrefixForbidden(prefixes ...string) func(string) bool {
	return func(path string) bool {
		for _, p := range prefixes {
			full := Module + "/" + strings.Trim(p, "/")
			if path == full || strings.HasPrefix(path, full+"/") {
				return true
			}
		}
		return false
	}
}

// AssertNoDirectImports parses the non-test Go files in dir and fails t if
// any import matches forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

func directImportViolations(dir string, forbidden func(string) bool) ([]string, error) {
	files, err := sourceFiles(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, name := range files {
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			if ip := strings.Trim(imp.Path.Value, `"`); forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}

// AssertExportedDocumented fails t for every exported function, method or
// type in the non-test files of dir that has no doc comment.
func AssertExportedDocumented(t testing.TB, dir string) {
	t.Helper()
	missing, err := undocumentedExports(dir)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	if len(missing) > 0 {
		t.Fatalf("exported declarations without doc comments:\n%s", strings.Join(missing, "\n"))
	}
}

func undocumentedExports(dir string) ([]string, error) {
	files, err := sourceFiles(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var missing []string
	for _, name := range files {
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments)
		if err != nil {
			return nil, err
		}
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Name.IsExported() && d.Doc == nil {
					missing = append(missing, d.Name.Name+" (in "+name+")")
				}
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					ts := spec.(*ast.TypeSpec)
					// an ungrouped type carries its comment on the GenDecl
					if ts.Name.IsExported() && ts.Doc == nil && (d.Lparen.IsValid() || d.Doc == nil) {
						missing = append(missing, ts.Name.Name+" (in "+name+")")
					}
				}
			}
		}
	}
	sort.Strings(missing)
	return missing, nil
}
