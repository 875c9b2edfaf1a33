package stats

import (
	"breadstamp/pkg/domain"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var seoul = time.FixedZone("KST", 9*60*60)

func bakeryAt(id string, at time.Time, fav bool) domain.Bakery {
	return domain.Bakery{Base: domain.Base{ID: id}, Name: id, VisitedAt: at, IsFavorite: fav}
}

func breadOf(cat domain.BreadCategory, rating int, bakeryID string) domain.Bread {
	b := domain.Bread{Category: cat, Rating: rating}
	if bakeryID != "" {
		b.BakeryID = &bakeryID
	}
	return b
}

func TestCalculateAggregates(t *testing.T) {
	// 2024-01-31 20:00 UTC is already February in Seoul
	bakeries := []domain.Bakery{
		bakeryAt("a", time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC), true),
		bakeryAt("b", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), false),
		bakeryAt("c", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), true),
	}
	breads := []domain.Bread{
		breadOf(domain.CategoryCroissant, 5, "a"),
		breadOf(domain.CategoryToast, 4, "a"),
		breadOf(domain.CategoryCroissant, 3, "b"),
		breadOf(domain.CategoryToast, 5, ""),
	}
	top := domain.CategoryToast
	want := Stats{
		TotalBakeries:    3,
		TotalBreads:      4,
		FavoriteBakeries: 2,
		AverageRating:    4.25,
		TopCategory:      &top,
		CategoryCounts: map[domain.BreadCategory]int{
			domain.CategoryCroissant: 2,
			domain.CategoryToast:     2,
		},
		MonthlyVisits:      map[string]int{"2024-01": 1, "2024-02": 2},
		FiveStarBreadCount: 2,
	}
	got := Calculate(bakeries, breads, seoul)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Calculate mismatch (-want +got):\n%s", diff)
	}
	if got.CurrentMonthVisits(time.Date(2024, 2, 15, 0, 0, 0, 0, seoul)) != 2 {
		t.Fatalf("expected 2 visits in February")
	}
	if diff := cmp.Diff([]CategoryCount{{domain.CategoryToast, 2}, {domain.CategoryCroissant, 2}}, got.Breakdown()); diff != "" {
		t.Fatalf("breakdown mismatch:\n%s", diff)
	}
}

func TestCalculateEmpty(t *testing.T) {
	got := Calculate(nil, nil, nil)
	if got.AverageRating != 0 || got.TopCategory != nil || len(got.MonthlyVisits) != 0 {
		t.Fatalf("unexpected empty stats %+v", got)
	}
}

func TestVisitWindows(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	bakeries := []domain.Bakery{
		bakeryAt("today", now, false),
		bakeryAt("edge", now.AddDate(0, 0, -7), false),
		bakeryAt("old", now.AddDate(0, 0, -30), false),
	}
	if n := VisitCount(bakeries, now.AddDate(0, 0, -7), now); n != 2 {
		t.Fatalf("inclusive window should count 2, got %d", n)
	}
	if n := RecentVisitCount(bakeries, 7, now); n != 2 {
		t.Fatalf("recent visits = %d", n)
	}
	weekly := WeeklyVisits(bakeries, 2, now)
	want := map[string]int{"2024-W12": 1, "2024-W11": 1}
	if diff := cmp.Diff(want, weekly); diff != "" {
		t.Fatalf("weekly mismatch:\n%s", diff)
	}
	if WeekKey(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)) != "2020-W53" {
		t.Fatalf("ISO week year not used")
	}
}

func TestPerBakeryHelpers(t *testing.T) {
	bakeries := []domain.Bakery{bakeryAt("a", time.Time{}, false), bakeryAt("b", time.Time{}, false), bakeryAt("c", time.Time{}, false)}
	breads := []domain.Bread{
		breadOf(domain.CategoryBagel, 2, "b"),
		breadOf(domain.CategoryBagel, 4, "c"),
		breadOf(domain.CategoryDonut, 5, "ghost"),
	}
	counts := BreadCountPerBakery(bakeries, breads)
	if diff := cmp.Diff(map[string]int{"a": 0, "b": 1, "c": 1}, counts); diff != "" {
		t.Fatalf("counts mismatch:\n%s", diff)
	}
	top, ok := TopBakery(bakeries, breads)
	if !ok || top.ID != "b" {
		t.Fatalf("expected first maximal bakery b, got %+v", top)
	}
	if _, ok := TopBakery(nil, breads); ok {
		t.Fatalf("expected no top bakery for empty input")
	}
	avg := AverageRatingByCategory(breads)
	if avg[domain.CategoryBagel] != 3 || avg[domain.CategoryDonut] != 5 {
		t.Fatalf("unexpected averages %+v", avg)
	}
	if diff := cmp.Diff([]domain.BreadCategory{domain.CategoryDonut, domain.CategoryBagel}, CollectedCategories(breads)); diff != "" {
		t.Fatalf("collected mismatch:\n%s", diff)
	}
}
