package achievement

import (
	"breadstamp/pkg/domain"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func ids(as []domain.Achievement) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func TestCheckUnlocksMetRequirements(t *testing.T) {
	now := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	counters := Counters{Bakeries: 5, Breads: 10, Categories: 3, FiveStar: 2}
	got := Check(counters, domain.Catalog(), now)
	want := []string{"first_stamp", "stamp_5", "first_bread", "bread_10"}
	if diff := cmp.Diff(want, ids(Unlocked(got))); diff != "" {
		t.Fatalf("unlocked mismatch (-want +got):\n%s", diff)
	}
	for _, a := range Unlocked(got) {
		if !a.UnlockedAt.Equal(now) {
			t.Fatalf("%s stamped with %v", a.ID, a.UnlockedAt)
		}
	}
	if diff := cmp.Diff(want, ids(NewlyUnlocked(domain.Catalog(), got))); diff != "" {
		t.Fatalf("newly unlocked mismatch:\n%s", diff)
	}
}

func TestCheckKeepsExistingUnlocks(t *testing.T) {
	earlier := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	current := WithUnlocks(domain.Catalog(), []domain.AchievementUnlock{{ID: "stamp_25", UnlockedAt: earlier}})
	got := Check(Counters{}, current, time.Now())
	unlocked := Unlocked(got)
	if len(unlocked) != 1 || unlocked[0].ID != "stamp_25" || !unlocked[0].UnlockedAt.Equal(earlier) {
		t.Fatalf("existing unlock must survive with zero counters: %+v", unlocked)
	}
}

func TestRequirementKinds(t *testing.T) {
	all := len(domain.AllCategories())
	cases := []struct {
		name     string
		req      domain.Requirement
		counters Counters
		met      bool
		progress float64
	}{
		{"bakery below", domain.Requirement{Kind: domain.RequirementBakeryCount, Count: 10}, Counters{Bakeries: 4}, false, 0.4},
		{"bakery capped", domain.Requirement{Kind: domain.RequirementBakeryCount, Count: 5}, Counters{Bakeries: 9}, true, 1},
		{"bread exact", domain.Requirement{Kind: domain.RequirementBreadCount, Count: 50}, Counters{Breads: 50}, true, 1},
		{"categories partial", domain.Requirement{Kind: domain.RequirementAllCategories}, Counters{Categories: all - 1}, false, float64(all-1) / float64(all)},
		{"categories full", domain.Requirement{Kind: domain.RequirementAllCategories}, Counters{Categories: all}, true, 1},
		{"five star none", domain.Requirement{Kind: domain.RequirementFiveStarBreads, Count: 5}, Counters{}, false, 0},
		{"unknown kind", domain.Requirement{Kind: "mystery", Count: 1}, Counters{Bakeries: 100}, false, 0},
	}
	for _, tc := range cases {
		if got := IsRequirementMet(tc.req, tc.counters); got != tc.met {
			t.Fatalf("%s: met=%v want %v", tc.name, got, tc.met)
		}
		if got := Progress(tc.req, tc.counters); got != tc.progress {
			t.Fatalf("%s: progress=%v want %v", tc.name, got, tc.progress)
		}
	}
}

func TestNextPrefersHighestProgressThenCatalogOrder(t *testing.T) {
	catalog := domain.Catalog()
	next, ok := Next(catalog, Counters{})
	if !ok || next.ID != "first_stamp" {
		t.Fatalf("tie at zero progress should pick first_stamp, got %s", next.ID)
	}
	unlocked := Check(Counters{Bakeries: 1, Breads: 1}, catalog, time.Now())
	next, ok = Next(unlocked, Counters{Bakeries: 1, Breads: 1, FiveStar: 4})
	if !ok || next.ID != "five_star" {
		t.Fatalf("expected five_star at 0.8 progress, got %s", next.ID)
	}
	all := Check(Counters{Bakeries: 25, Breads: 50, Categories: 7, FiveStar: 5}, catalog, time.Now())
	if _, ok := Next(all, Counters{}); ok {
		t.Fatalf("no next achievement once everything is unlocked")
	}
	if CompletionRate(all) != 1 || CompletionRate(nil) != 0 || len(Available(all)) != 0 {
		t.Fatalf("unexpected completion helpers")
	}
}

func TestCountersFromRecords(t *testing.T) {
	breads := []domain.Bread{
		{Category: domain.CategoryToast, Rating: 5},
		{Category: domain.CategoryToast, Rating: 3},
		{Category: domain.CategoryBagel, Rating: 5},
	}
	got := CountersFrom([]domain.Bakery{{}, {}}, breads)
	if diff := cmp.Diff(Counters{Bakeries: 2, Breads: 3, Categories: 2, FiveStar: 2}, got); diff != "" {
		t.Fatalf("counters mismatch:\n%s", diff)
	}
}
