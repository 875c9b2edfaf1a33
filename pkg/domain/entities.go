// Package domain defines the persistent records, value types, and rule
// evaluation primitives used by breadstamp.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityBakery identifies a visited bakery record.
	EntityBakery EntityType = "bakery"
	// EntityBread identifies a bread eaten at a bakery.
	EntityBread EntityType = "bread"
	// EntityAchievement identifies a persisted achievement unlock.
	EntityAchievement EntityType = "achievement"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Rating bounds for a bread entry.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 3
)

// Base carries the identity and timestamps shared by every record.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bakery is a single bakery visit.
type Bakery struct {
	Base
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	VisitedAt  time.Time `json:"visited_at"`
	Memo       *string   `json:"memo,omitempty"`
	PhotoKey   string    `json:"photo_key,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
}

// Bread is a bread eaten at (optionally) a bakery.
type Bread struct {
	Base
	Name     string        `json:"name"`
	Category BreadCategory `json:"category"`
	PhotoKey string        `json:"photo_key,omitempty"`
	Rating   int           `json:"rating"`
	Memo     *string       `json:"memo,omitempty"`
	EatenAt  time.Time     `json:"eaten_at"`
	BakeryID *string       `json:"bakery_id,omitempty"`
}

// BelongsTo reports whether the bread references the given bakery.
func (b Bread) BelongsTo(bakeryID string) bool {
	return b.BakeryID != nil && *b.BakeryID == bakeryID
}

// ClampRating forces r into [MinRating, MaxRating].
func ClampRating(r int) int {
	return min(max(r, MinRating), MaxRating)
}

// AverageRating returns the mean rating of breads, or 0 when there are none.
func AverageRating(breads []Bread) float64 {
	if len(breads) == 0 {
		return 0
	}
	total := 0
	for _, b := range breads {
		total += b.Rating
	}
	return float64(total) / float64(len(breads))
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// BreadCategory is the closed set of bread kinds.
type BreadCategory string

// Categories in display order.
const (
	CategoryToast     BreadCategory = "toast"
	CategoryCroissant BreadCategory = "croissant"
	CategorySweetBun  BreadCategory = "sweet_bun"
	CategoryCake      BreadCategory = "cake"
	CategoryDonut     BreadCategory = "donut"
	CategoryBagel     BreadCategory = "bagel"
	CategoryOther     BreadCategory = "other"
)

var allCategories = []BreadCategory{
	CategoryToast,
	CategoryCroissant,
	CategorySweetBun,
	CategoryCake,
	CategoryDonut,
	CategoryBagel,
	CategoryOther,
}

var categoryDisplay = map[BreadCategory]struct{ name, icon string }{
	CategoryToast:     {"식빵류", "🍞"},
	CategoryCroissant: {"크로아상류", "🥐"},
	CategorySweetBun:  {"단팥빵류", "🥮"},
	CategoryCake:      {"케이크류", "🍰"},
	CategoryDonut:     {"도넛류", "🍩"},
	CategoryBagel:     {"베이글류", "🥯"},
	CategoryOther:     {"기타", "🥖"},
}

// AllCategories returns every category in declaration order.
func AllCategories() []BreadCategory {
	return append([]BreadCategory(nil), allCategories...)
}

// Valid reports whether c is a known category.
func (c BreadCategory) Valid() bool {
	_, ok := categoryDisplay[c]
	return ok
}

// DisplayName returns the localized label.
func (c BreadCategory) DisplayName() string {
	return categoryDisplay[c].name
}

// Icon returns the emoji used for the category.
func (c BreadCategory) Icon() string {
	return categoryDisplay[c].icon
}

// Index returns the declaration position of c, or -1 when unknown.
func (c BreadCategory) Index() int {
	for i, v := range allCategories {
		if v == c {
			return i
		}
	}
	return -1
}

// ParseCategory accepts either the category key or its display name.
func ParseCategory(s string) (BreadCategory, error) {
	s = strings.TrimSpace(s)
	if c := BreadCategory(strings.ToLower(s)); c.Valid() {
		return c, nil
	}
	for _, c := range allCategories {
		if categoryDisplay[c].name == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown bread category %q", s)
}

// AchievementUnlock records when an achievement was first earned.
type AchievementUnlock struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
