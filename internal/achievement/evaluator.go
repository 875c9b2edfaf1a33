// Package achievement decides which badges the collected records unlock.
// Every function is pure; persistence of unlocks is the caller's job.
package achievement

import (
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"time"
)

// Counters are the aggregate inputs every requirement is judged against.
type Counters struct {
	Bakeries   int
	Breads     int
	Categories int // distinct categories collected
	FiveStar   int
}

// CountersFrom derives counters from the full record set.
func CountersFrom(bakeries []domain.Bakery, breads []domain.Bread) Counters {
	return Counters{
		Bakeries:   len(bakeries),
		Breads:     len(breads),
		Categories: len(stats.CollectedCategories(breads)),
		FiveStar:   stats.FiveStarCount(breads),
	}
}

// CountersFromStats derives counters from an aggregate.
func CountersFromStats(s stats.Stats) Counters {
	collected := 0
	for _, n := range s.CategoryCounts {
		if n > 0 {
			collected++
		}
	}
	return Counters{Bakeries: s.TotalBakeries, Breads: s.TotalBreads, Categories: collected, FiveStar: s.FiveStarBreadCount}
}

// WithUnlocks overlays persisted unlock times onto the catalog.
func WithUnlocks(catalog []domain.Achievement, unlocks []domain.AchievementUnlock) []domain.Achievement {
	at := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		at[u.ID] = u.UnlockedAt
	}
	out := make([]domain.Achievement, len(catalog))
	for i, a := range catalog {
		if t, ok := at[a.ID]; ok && a.UnlockedAt == nil {
			t := t
			a.UnlockedAt = &t
		}
		out[i] = a
	}
	return out
}

// Check stamps now on every locked achievement whose requirement is met.
// Already unlocked achievements keep their original time.
func Check(c Counters, current []domain.Achievement, now time.Time) []domain.Achievement {
	out := make([]domain.Achievement, len(current))
	for i, a := range current {
		if !a.IsUnlocked() && IsRequirementMet(a.Requirement, c) {
			stamp := now
			a.UnlockedAt = &stamp
		}
		out[i] = a
	}
	return out
}

// NewlyUnlocked returns the achievements unlocked in after but not in before, matched by id.
func NewlyUnlocked(before, after []domain.Achievement) []domain.Achievement {
	was := make(map[string]bool, len(before))
	for _, a := range before {
		was[a.ID] = a.IsUnlocked()
	}
	var out []domain.Achievement
	for _, a := range after {
		if a.IsUnlocked() && !was[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// IsRequirementMet reports whether the counters satisfy r.
func IsRequirementMet(r domain.Requirement, c Counters) bool {
	switch r.Kind {
	case domain.RequirementBakeryCount:
		return c.Bakeries >= r.Count
	case domain.RequirementBreadCount:
		return c.Breads >= r.Count
	case domain.RequirementAllCategories:
		return c.Categories >= len(domain.AllCategories())
	case domain.RequirementFiveStarBreads:
		return c.FiveStar >= r.Count
	default:
		return false
	}
}

// Progress returns how close the counters are to r, in [0, 1].
func Progress(r domain.Requirement, c Counters) float64 {
	switch r.Kind {
	case domain.RequirementBakeryCount:
		return ratio(c.Bakeries, r.Count)
	case domain.RequirementBreadCount:
		return ratio(c.Breads, r.Count)
	case domain.RequirementAllCategories:
		return ratio(c.Categories, len(domain.AllCategories()))
	case domain.RequirementFiveStarBreads:
		return ratio(c.FiveStar, r.Count)
	default:
		return 0
	}
}

func ratio(have, need int) float64 {
	if need <= 0 || have >= need {
		return 1
	}
	if have <= 0 {
		return 0
	}
	return float64(have) / float64(need)
}

// Available returns the locked achievements.
func Available(all []domain.Achievement) []domain.Achievement {
	var out []domain.Achievement
	for _, a := range all {
		if !a.IsUnlocked() {
			out = append(out, a)
		}
	}
	return out
}

// Unlocked returns the earned achievements.
func Unlocked(all []domain.Achievement) []domain.Achievement {
	var out []domain.Achievement
	for _, a := range all {
		if a.IsUnlocked() {
			out = append(out, a)
		}
	}
	return out
}

// CompletionRate is the unlocked fraction, 0 for no achievements.
func CompletionRate(all []domain.Achievement) float64 {
	if len(all) == 0 {
		return 0
	}
	return float64(len(Unlocked(all))) / float64(len(all))
}

// Next recommends the locked achievement closest to completion. Ties go to
// the earliest one in the given order.
func Next(all []domain.Achievement, c Counters) (domain.Achievement, bool) {
	var best domain.Achievement
	bestProgress := -1.0
	found := false
	for _, a := range Available(all) {
		if p := Progress(a.Requirement, c); p > bestProgress {
			best, bestProgress, found = a, p, true
		}
	}
	return best, found
}
