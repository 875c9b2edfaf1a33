package domain

import (
	"fmt"
	"time"
)

// RequirementKind enumerates the badge condition families.
type RequirementKind string

// Requirement kinds.
const (
	RequirementBakeryCount    RequirementKind = "bakery_count"
	RequirementBreadCount     RequirementKind = "bread_count"
	RequirementAllCategories  RequirementKind = "all_categories"
	RequirementFiveStarBreads RequirementKind = "five_star_breads"
)

// Requirement is the threshold an achievement must reach. Count is unused
// for RequirementAllCategories.
type Requirement struct {
	Kind  RequirementKind `json:"kind"`
	Count int             `json:"count,omitempty"`
}

// Achievement is a badge definition plus its unlock state.
type Achievement struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	IconName    string      `json:"icon_name"`
	Requirement Requirement `json:"requirement"`
	UnlockedAt  *time.Time  `json:"unlocked_at,omitempty"`
}

// IsUnlocked reports whether the badge has been earned.
func (a Achievement) IsUnlocked() bool {
	return a.UnlockedAt != nil
}

// Guide returns a hint describing how to earn the badge.
func (a Achievement) Guide() string {
	switch a.Requirement.Kind {
	case RequirementBakeryCount:
		return fmt.Sprintf("빵집을 %d개 방문하면 달성할 수 있어요!\n스탬프북에서 새로운 빵집을 추가해보세요.", a.Requirement.Count)
	case RequirementBreadCount:
		return fmt.Sprintf("빵을 %d개 기록하면 달성할 수 있어요!\n빵집 상세에서 먹은 빵을 추가해보세요.", a.Requirement.Count)
	case RequirementAllCategories:
		return "모든 카테고리의 빵을 기록하면 달성할 수 있어요!\n다양한 종류의 빵을 맛보세요."
	case RequirementFiveStarBreads:
		return fmt.Sprintf("5점 만점 빵을 %d개 기록하면 달성할 수 있어요!\n최고의 빵을 발견해보세요.", a.Requirement.Count)
	default:
		return ""
	}
}

// Catalog returns a fresh copy of every achievement, all locked.
func Catalog() []Achievement {
	return []Achievement{
		{ID: "first_stamp", Title: "첫 발걸음", Description: "첫 번째 빵집 방문", IconName: "flag.fill", Requirement: Requirement{Kind: RequirementBakeryCount, Count: 1}},
		{ID: "stamp_5", Title: "빵집 탐험가", Description: "5개의 빵집 방문", IconName: "star.fill", Requirement: Requirement{Kind: RequirementBakeryCount, Count: 5}},
		{ID: "stamp_10", Title: "빵집 수집가", Description: "10개의 빵집 방문", IconName: "trophy.fill", Requirement: Requirement{Kind: RequirementBakeryCount, Count: 10}},
		{ID: "stamp_25", Title: "빵집 마스터", Description: "25개의 빵집 방문", IconName: "crown.fill", Requirement: Requirement{Kind: RequirementBakeryCount, Count: 25}},
		{ID: "first_bread", Title: "첫 맛", Description: "첫 번째 빵 기록", IconName: "birthday.cake.fill", Requirement: Requirement{Kind: RequirementBreadCount, Count: 1}},
		{ID: "bread_10", Title: "빵 애호가", Description: "10개의 빵 기록", IconName: "heart.fill", Requirement: Requirement{Kind: RequirementBreadCount, Count: 10}},
		{ID: "bread_50", Title: "빵 도감 완성 중", Description: "50개의 빵 기록", IconName: "book.fill", Requirement: Requirement{Kind: RequirementBreadCount, Count: 50}},
		{ID: "all_categories", Title: "다양한 입맛", Description: "모든 카테고리 빵 기록", IconName: "sparkles", Requirement: Requirement{Kind: RequirementAllCategories}},
		{ID: "five_star", Title: "완벽한 맛", Description: "5점 빵 5개 기록", IconName: "star.circle.fill", Requirement: Requirement{Kind: RequirementFiveStarBreads, Count: 5}},
	}
}
