package core

import (
	"breadstamp/pkg/domain"
	"context"
	"fmt"
	"strings"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewRequiredNamesRule())
	engine.Register(NewRatingRangeRule())
	engine.Register(NewBakeryReferenceRule())
	engine.Register(NewCoordinatesRule())
	return engine
}

// NewRatingRangeRule blocks breads whose rating falls outside [MinRating, MaxRating].
func NewRatingRangeRule() domain.Rule { return ratingRangeRule{} }

type ratingRangeRule struct{}

func (ratingRangeRule) Name() string { return "bread_rating_range" }

func (r ratingRangeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, bread := range view.ListBreads() {
		if bread.Rating < domain.MinRating || bread.Rating > domain.MaxRating {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("bread %s rating %d outside %d-%d", bread.ID, bread.Rating, domain.MinRating, domain.MaxRating),
				Entity:   domain.EntityBread,
				EntityID: bread.ID,
			})
		}
	}
	return res, nil
}

// NewBakeryReferenceRule blocks breads pointing at a bakery that does not exist.
func NewBakeryReferenceRule() domain.Rule { return bakeryReferenceRule{} }

type bakeryReferenceRule struct{}

func (bakeryReferenceRule) Name() string { return "bread_bakery_reference" }

func (r bakeryReferenceRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, bread := range view.ListBreads() {
		if bread.BakeryID == nil || *bread.BakeryID == "" {
			continue
		}
		if _, ok := view.FindBakery(*bread.BakeryID); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("bread %s references missing bakery %s", bread.ID, *bread.BakeryID),
				Entity:   domain.EntityBread,
				EntityID: bread.ID,
			})
		}
	}
	return res, nil
}

// NewCoordinatesRule blocks bakeries with an impossible latitude or longitude.
func NewCoordinatesRule() domain.Rule { return coordinatesRule{} }

type coordinatesRule struct{}

func (coordinatesRule) Name() string { return "bakery_coordinates" }

func (r coordinatesRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		bakery, ok := change.After.(domain.Bakery)
		if !ok || change.Entity != domain.EntityBakery {
			continue
		}
		if bakery.Latitude < -90 || bakery.Latitude > 90 || bakery.Longitude < -180 || bakery.Longitude > 180 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("bakery %s coordinates (%.6f, %.6f) out of range", bakery.ID, bakery.Latitude, bakery.Longitude),
				Entity:   domain.EntityBakery,
				EntityID: bakery.ID,
			})
		}
	}
	return res, nil
}

// NewRequiredNamesRule blocks created or updated records with a blank name.
func NewRequiredNamesRule() domain.Rule { return requiredNamesRule{} }

type requiredNamesRule struct{}

func (requiredNamesRule) Name() string { return "required_names" }

func (r requiredNamesRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		var id, name string
		switch after := change.After.(type) {
		case domain.Bakery:
			id, name = after.ID, after.Name
		case domain.Bread:
			id, name = after.ID, after.Name
		default:
			continue
		}
		if strings.TrimSpace(name) == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s requires a name", change.Entity, id),
				Entity:   change.Entity,
				EntityID: id,
			})
		}
	}
	return res, nil
}
