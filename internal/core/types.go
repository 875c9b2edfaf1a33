package core

import (
	"breadstamp/pkg/domain"
	"time"
)

// EntityPhoto names photo payloads in ErrNotFound.
const EntityPhoto domain.EntityType = "photo"

// BakerySummary is a bakery with the aggregates derived from its breads.
type BakerySummary struct {
	domain.Bakery
	BreadCount    int     `json:"bread_count"`
	AverageRating float64 `json:"average_rating"`
}

// PhotoUpload is a photo as received from a client. An empty or generic
// ContentType is sniffed from Data.
type PhotoUpload struct {
	Data        []byte
	ContentType string
}

// BakeryInput carries the fields of a new bakery. Photo is stored in the
// same commit as the bakery.
type BakeryInput struct {
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	VisitedAt  *time.Time `json:"visited_at,omitempty"`
	Memo       *string    `json:"memo,omitempty"`
	IsFavorite bool       `json:"is_favorite"`

	Photo *PhotoUpload `json:"-"`
}

// BakeryUpdate changes only the non-nil fields. An empty Memo clears it, as
// does a Photo without data.
type BakeryUpdate struct {
	Name       *string    `json:"name,omitempty"`
	Address    *string    `json:"address,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	VisitedAt  *time.Time `json:"visited_at,omitempty"`
	Memo       *string    `json:"memo,omitempty"`
	IsFavorite *bool      `json:"is_favorite,omitempty"`

	Photo *PhotoUpload `json:"-"`
}

// BreadInput carries the fields of a new bread. A zero Rating means the
// default. Photo is stored in the same commit as the bread.
type BreadInput struct {
	Name     string               `json:"name"`
	Category domain.BreadCategory `json:"category"`
	Rating   int                  `json:"rating"`
	Memo     *string              `json:"memo,omitempty"`
	EatenAt  *time.Time           `json:"eaten_at,omitempty"`
	BakeryID *string              `json:"bakery_id,omitempty"`

	Photo *PhotoUpload `json:"-"`
}

// BreadUpdate changes only the non-nil fields. An empty Memo or BakeryID
// clears it, as does a Photo without data.
type BreadUpdate struct {
	Name     *string               `json:"name,omitempty"`
	Category *domain.BreadCategory `json:"category,omitempty"`
	Rating   *int                  `json:"rating,omitempty"`
	Memo     *string               `json:"memo,omitempty"`
	EatenAt  *time.Time            `json:"eaten_at,omitempty"`
	BakeryID *string               `json:"bakery_id,omitempty"`

	Photo *PhotoUpload `json:"-"`
}

// BreadFilter narrows ListBreads. Zero values match everything.
type BreadFilter struct {
	Category  domain.BreadCategory
	BakeryID  string
	MinRating int
}

func (f BreadFilter) matches(b domain.Bread) bool {
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	if f.BakeryID != "" && !b.BelongsTo(f.BakeryID) {
		return false
	}
	return b.Rating >= f.MinRating
}
