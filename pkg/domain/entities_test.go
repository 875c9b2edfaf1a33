package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestClampRating(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 3: 3, 5: 5, 6: 5, 100: 5}
	for in, want := range cases {
		if got := ClampRating(in); got != want {
			t.Fatalf("ClampRating(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAverageRating(t *testing.T) {
	if got := AverageRating(nil); got != 0 {
		t.Fatalf("expected 0 for no breads, got %v", got)
	}
	breads := []Bread{{Rating: 5}, {Rating: 4}, {Rating: 3}}
	if got := AverageRating(breads); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
}

func TestBreadBelongsTo(t *testing.T) {
	id := "b1"
	if !(Bread{BakeryID: &id}).BelongsTo("b1") {
		t.Fatalf("expected bread to belong to b1")
	}
	if (Bread{}).BelongsTo("b1") {
		t.Fatalf("bread without bakery should not belong to b1")
	}
}

func TestParseCategory(t *testing.T) {
	for _, in := range []string{"croissant", "CROISSANT", " 크로아상류 "} {
		c, err := ParseCategory(in)
		if err != nil || c != CategoryCroissant {
			t.Fatalf("ParseCategory(%q) = %q, %v", in, c, err)
		}
	}
	if _, err := ParseCategory("baguette-ish"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestCategoryMetadata(t *testing.T) {
	all := AllCategories()
	if len(all) != 7 {
		t.Fatalf("expected 7 categories, got %d", len(all))
	}
	for i, c := range all {
		if c.DisplayName() == "" || c.Icon() == "" {
			t.Fatalf("category %s missing display metadata", c)
		}
		if c.Index() != i {
			t.Fatalf("category %s index %d, want %d", c, c.Index(), i)
		}
	}
	all[0] = "mutated"
	if AllCategories()[0] != CategoryToast {
		t.Fatalf("AllCategories must return a copy")
	}
	if BreadCategory("nope").Index() != -1 || BreadCategory("nope").Valid() {
		t.Fatalf("unknown category should be invalid")
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("   ") != nil {
		t.Fatalf("blank string should map to nil")
	}
	if p := StringPtr("memo"); p == nil || *p != "memo" {
		t.Fatalf("unexpected pointer %v", p)
	}
}

func TestCatalogIsLockedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Catalog() {
		if a.IsUnlocked() {
			t.Fatalf("catalog entry %s should start locked", a.ID)
		}
		if seen[a.ID] {
			t.Fatalf("duplicate achievement id %s", a.ID)
		}
		seen[a.ID] = true
		if a.Guide() == "" {
			t.Fatalf("achievement %s has no guide", a.ID)
		}
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 achievements, got %d", len(seen))
	}
}

func TestGuideMentionsCount(t *testing.T) {
	a := Achievement{Requirement: Requirement{Kind: RequirementBreadCount, Count: 50}}
	if !strings.Contains(a.Guide(), "50") {
		t.Fatalf("guide should mention threshold: %q", a.Guide())
	}
	if (Achievement{Requirement: Requirement{Kind: "unknown"}}).Guide() != "" {
		t.Fatalf("unknown requirement should have empty guide")
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var r Result
	r.Merge(Result{})
	if r.HasBlocking() {
		t.Fatalf("empty result should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "w", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Fatalf("warn should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock, Message: "bad rating"}}})
	if !r.HasBlocking() {
		t.Fatalf("expected blocking")
	}
	err := RuleViolationError{Result: r}
	if !strings.Contains(err.Error(), "bad rating") {
		t.Fatalf("error should include blocking message: %v", err)
	}
	if (RuleViolationError{}).Error() != "transaction blocked by rules" {
		t.Fatalf("unexpected bare error message")
	}
}

type stubRule struct {
	name string
	res  Result
	err  error
}

func (s stubRule) Name() string { return s.name }
func (s stubRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return s.res, s.err
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(stubRule{name: "a", res: Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}}})
	engine.Register(stubRule{name: "b", res: Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}}})
	if names := engine.Rules(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected rule names %v", names)
	}
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("unexpected result %+v", res)
	}

	boom := errors.New("boom")
	engine.Register(stubRule{name: "c", err: boom})
	if _, err := engine.Evaluate(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}
}
