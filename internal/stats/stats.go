// Package stats aggregates bakery and bread records into the numbers shown
// on the profile screen, and memoizes the result.
package stats

import (
	"breadstamp/pkg/domain"
	"fmt"
	"time"
)

// MonthLayout formats the keys of Stats.MonthlyVisits.
const MonthLayout = "2006-01"

// Stats is the aggregate view over every bakery and bread.
type Stats struct {
	TotalBakeries      int                          `json:"total_bakeries"`
	TotalBreads        int                          `json:"total_breads"`
	FavoriteBakeries   int                          `json:"favorite_bakeries"`
	AverageRating      float64                      `json:"average_rating"`
	TopCategory        *domain.BreadCategory        `json:"top_category,omitempty"`
	CategoryCounts     map[domain.BreadCategory]int `json:"category_counts"`
	MonthlyVisits      map[string]int               `json:"monthly_visits"`
	FiveStarBreadCount int                          `json:"five_star_bread_count"`
}

// CategoryCount is one row of the category breakdown.
type CategoryCount struct {
	Category domain.BreadCategory `json:"category"`
	Count    int                  `json:"count"`
}

// Calculate aggregates the records. Month keys are computed in loc (UTC when nil).
func Calculate(bakeries []domain.Bakery, breads []domain.Bread, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	s := Stats{
		TotalBakeries:      len(bakeries),
		TotalBreads:        len(breads),
		AverageRating:      domain.AverageRating(breads),
		CategoryCounts:     make(map[domain.BreadCategory]int),
		MonthlyVisits:      make(map[string]int),
		FiveStarBreadCount: FiveStarCount(breads),
	}
	for _, b := range bakeries {
		if b.IsFavorite {
			s.FavoriteBakeries++
		}
		s.MonthlyVisits[MonthKey(b.VisitedAt.In(loc))]++
	}
	for _, b := range breads {
		s.CategoryCounts[b.Category]++
	}
	s.TopCategory = topCategory(s.CategoryCounts)
	return s
}

// ties go to the category declared first
func topCategory(counts map[domain.BreadCategory]int) *domain.BreadCategory {
	var top *domain.BreadCategory
	best := 0
	for _, c := range domain.AllCategories() {
		if n := counts[c]; n > best {
			c := c
			top, best = &c, n
		}
	}
	return top
}

// MonthKey returns the YYYY-MM bucket of t in its own location.
func MonthKey(t time.Time) string { return t.Format(MonthLayout) }

// WeekKey returns the ISO week bucket of t, e.g. 2024-W05.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// CurrentMonthVisits returns the visit count for the month containing now.
func (s Stats) CurrentMonthVisits(now time.Time) int { return s.MonthlyVisits[MonthKey(now)] }

// Breakdown lists category counts in declaration order, skipping empty ones.
func (s Stats) Breakdown() []CategoryCount {
	var out []CategoryCount
	for _, c := range domain.AllCategories() {
		if n := s.CategoryCounts[c]; n > 0 {
			out = append(out, CategoryCount{Category: c, Count: n})
		}
	}
	return out
}

// FiveStarCount counts breads rated 5.
func FiveStarCount(breads []domain.Bread) int {
	n := 0
	for _, b := range breads {
		if b.Rating == domain.MaxRating {
			n++
		}
	}
	return n
}

// CollectedCategories returns the distinct categories present, in declaration order.
func CollectedCategories(breads []domain.Bread) []domain.BreadCategory {
	seen := make(map[domain.BreadCategory]bool, len(breads))
	for _, b := range breads {
		seen[b.Category] = true
	}
	var out []domain.BreadCategory
	for _, c := range domain.AllCategories() {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// VisitCount counts bakeries visited within [from, to].
func VisitCount(bakeries []domain.Bakery, from, to time.Time) int {
	n := 0
	for _, b := range bakeries {
		if !b.VisitedAt.Before(from) && !b.VisitedAt.After(to) {
			n++
		}
	}
	return n
}

// RecentVisitCount counts visits in the last days up to now.
func RecentVisitCount(bakeries []domain.Bakery, lastDays int, now time.Time) int {
	return VisitCount(bakeries, now.AddDate(0, 0, -lastDays), now)
}

// BreadCountPerBakery maps every bakery id to the number of breads eaten there.
func BreadCountPerBakery(bakeries []domain.Bakery, breads []domain.Bread) map[string]int {
	out := make(map[string]int, len(bakeries))
	for _, b := range bakeries {
		out[b.ID] = 0
	}
	for _, b := range breads {
		if b.BakeryID == nil {
			continue
		}
		if _, ok := out[*b.BakeryID]; ok {
			out[*b.BakeryID]++
		}
	}
	return out
}

// TopBakery returns the first bakery with the most breads.
func TopBakery(bakeries []domain.Bakery, breads []domain.Bread) (domain.Bakery, bool) {
	if len(bakeries) == 0 {
		return domain.Bakery{}, false
	}
	counts := BreadCountPerBakery(bakeries, breads)
	best := 0
	for i, b := range bakeries {
		if counts[b.ID] > counts[bakeries[best].ID] {
			best = i
		}
	}
	return bakeries[best], true
}

// WeeklyVisits buckets visits from the last weeks by ISO week, in now's location.
func WeeklyVisits(bakeries []domain.Bakery, lastWeeks int, now time.Time) map[string]int {
	start := now.AddDate(0, 0, -7*lastWeeks)
	out := make(map[string]int)
	for _, b := range bakeries {
		if b.VisitedAt.Before(start) {
			continue
		}
		out[WeekKey(b.VisitedAt.In(now.Location()))]++
	}
	return out
}

// AverageRatingByCategory averages ratings per category present.
func AverageRatingByCategory(breads []domain.Bread) map[domain.BreadCategory]float64 {
	grouped := make(map[domain.BreadCategory][]domain.Bread)
	for _, b := range breads {
		grouped[b.Category] = append(grouped[b.Category], b)
	}
	out := make(map[domain.BreadCategory]float64, len(grouped))
	for c, group := range grouped {
		out[c] = domain.AverageRating(group)
	}
	return out
}
