// Package sampledata seeds an empty collection with a handful of real Seoul
// bakeries so a fresh install has something to show.
package sampledata

import (
	"breadstamp/internal/core"
	"breadstamp/pkg/domain"
	"context"
	"fmt"
	"time"
)

// Seeder is the subset of core.Service used for seeding.
type Seeder interface {
	ListBakeries(ctx context.Context) ([]core.BakerySummary, error)
	CreateBakery(ctx context.Context, in core.BakeryInput) (domain.Bakery, domain.Result, error)
	CreateBread(ctx context.Context, in core.BreadInput) (domain.Bread, domain.Result, error)
}

type bakerySeed struct {
	name, address string
	lat, lng      float64
	memo          string
	daysAgo       int
	favorite      bool
}

type breadSeed struct {
	name     string
	category domain.BreadCategory
	rating   int
	memo     string
	bakery   int
}

var bakeries = []bakerySeed{
	{"밀도", "서울 마포구 월드컵로1길 28", 37.5563, 126.9068, "식빵이 정말 유명한 곳!", 1, true},
	{"르뱅", "서울 성동구 서울숲2길 45", 37.5445, 127.0437, "크루아상과 바게트가 맛있어요", 3, false},
	{"오월의종", "서울 용산구 이태원로54길 5", 37.5349, 126.9948, "앙버터가 유명한 빵집", 5, true},
	{"나폴레옹 베이커리", "서울 서초구 서초대로78길 22", 37.4962, 127.0263, "", 7, false},
	{"태극당", "서울 중구 동호로24길 7", 37.5585, 127.0098, "1946년부터 이어온 전통 빵집", 14, false},
}

var breads = []breadSeed{
	{"밀도 식빵", domain.CategoryToast, 5, "부드럽고 촉촉한 식빵", 0},
	{"옥수수 식빵", domain.CategoryToast, 4, "", 0},
	{"크루아상", domain.CategoryCroissant, 5, "겉바속촉 완벽한 크루아상", 1},
	{"올리브 치아바타", domain.CategoryOther, 4, "", 1},
	{"에그타르트", domain.CategoryCake, 4, "", 1},
	{"앙버터", domain.CategorySweetBun, 5, "팥앙금과 버터의 조화!", 2},
	{"소보로", domain.CategorySweetBun, 3, "", 2},
	{"나폴레옹 파이", domain.CategoryCake, 5, "", 3},
	{"도넛", domain.CategoryDonut, 4, "", 3},
	{"모카빵", domain.CategorySweetBun, 4, "전통 모카빵의 정석", 4},
	{"야채 샐러드빵", domain.CategoryOther, 3, "", 4},
	{"단팥 도넛", domain.CategoryDonut, 5, "", 4},
}

// Counts reports how many bakeries and breads Seed inserts.
func Counts() (int, int) { return len(bakeries), len(breads) }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Seed inserts the sample records when no bakery exists yet. It reports
// whether anything was inserted. Visit and eaten dates count back from now.
func Seed(ctx context.Context, svc Seeder, now time.Time) (bool, error) {
	existing, err := svc.ListBakeries(ctx)
	if err != nil {
		return false, fmt.Errorf("list bakeries: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	ids := make([]string, len(bakeries))
	for i, b := range bakeries {
		visited := now.AddDate(0, 0, -b.daysAgo)
		created, _, err := svc.CreateBakery(ctx, core.BakeryInput{
			Name:       b.name,
			Address:    b.address,
			Latitude:   b.lat,
			Longitude:  b.lng,
			Memo:       optional(b.memo),
			VisitedAt:  &visited,
			IsFavorite: b.favorite,
		})
		if err != nil {
			return false, fmt.Errorf("seed bakery %s: %w", b.name, err)
		}
		ids[i] = created.ID
	}
	for i, b := range breads {
		eaten := now.AddDate(0, 0, -i)
		bakeryID := ids[b.bakery]
		if _, _, err := svc.CreateBread(ctx, core.BreadInput{
			Name:     b.name,
			Category: b.category,
			Rating:   b.rating,
			Memo:     optional(b.memo),
			EatenAt:  &eaten,
			BakeryID: &bakeryID,
		}); err != nil {
			return false, fmt.Errorf("seed bread %s: %w", b.name, err)
		}
	}
	return true, nil
}
