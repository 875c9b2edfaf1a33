// Package core implements the breadstamp application service: bakery and
// bread bookkeeping, photo handling, statistics and achievement unlocks on
// top of a transactional domain.PersistentStore.
package core

import (
	"breadstamp/internal/achievement"
	"breadstamp/internal/blob"
	"breadstamp/internal/imagecache"
	"breadstamp/internal/infra/persistence/memory"
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service coordinates the store, photo storage and derived views.
type Service struct {
	store      domain.PersistentStore
	blobs      blob.Store
	images     *imagecache.Cache
	statsCache stats.Cache
	logger     *zap.Logger
	metrics    MetricsRecorder
	now        func() time.Time
	loc        *time.Location
}

// NewService wires a service around store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blobs == nil {
		s.blobs = blob.NewMemory()
	}
	if s.images == nil {
		s.images = imagecache.New(0, 0)
	}
	if s.statsCache == nil {
		s.statsCache = stats.NewMemoryCache(stats.DefaultTTL, s.loc)
	}
	return s
}

// NewInMemoryService is a convenience constructor for tests and demos.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(NewDefaultRulesEngine()), opts...)
}

// Store exposes the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Location returns the zone statistics are bucketed in.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("operation failed", zap.String("operation", op), zap.Error(err))
		return
	}
	s.logger.Debug("operation completed", zap.String("operation", op), zap.Duration("duration", time.Since(start)))
}

// mutate runs fn, records any achievements the new state earns, and drops
// cached statistics once the commit succeeds.
func (s *Service) mutate(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		return s.recordUnlocks(tx.Snapshot(), tx)
	})
	if err != nil {
		return res, err
	}
	s.statsCache.Invalidate(ctx)
	return res, nil
}

func (s *Service) recordUnlocks(view domain.TransactionView, tx domain.Transaction) error {
	for _, a := range s.pendingUnlocks(view) {
		if err := tx.RecordUnlock(domain.AchievementUnlock{ID: a.ID, UnlockedAt: *a.UnlockedAt}); err != nil {
			return err
		}
		s.logger.Info("achievement unlocked", zap.String("achievement", a.ID), zap.String("title", a.Title))
	}
	return nil
}

func (s *Service) pendingUnlocks(view domain.TransactionView) []domain.Achievement {
	counters := achievement.CountersFrom(view.ListBakeries(), view.ListBreads())
	current := achievement.WithUnlocks(domain.Catalog(), view.ListUnlocks())
	return achievement.NewlyUnlocked(current, achievement.Check(counters, current, s.now()))
}

// CreateBakery records a new bakery visit.
func (s *Service) CreateBakery(ctx context.Context, in BakeryInput) (bakery domain.Bakery, res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "create_bakery", start, err) }()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Bakery{}, domain.Result{}, invalid("bakery name is required")
	}
	record := domain.Bakery{
		Name:       name,
		Address:    strings.TrimSpace(in.Address),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		IsFavorite: in.IsFavorite,
	}
	if in.VisitedAt != nil {
		record.VisitedAt = *in.VisitedAt
	}
	if in.Memo != nil {
		record.Memo = domain.StringPtr(*in.Memo)
	}
	if in.Photo != nil {
		record.ID = uuid.NewString()
	}
	photo, err := s.stagePhoto(ctx, domain.EntityBakery, record.ID, "", in.Photo)
	if err != nil {
		return domain.Bakery{}, domain.Result{}, err
	}
	record.PhotoKey = photo.key
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		var txErr error
		bakery, txErr = tx.CreateBakery(record)
		return txErr
	})
	s.settlePhoto(ctx, photo, err)
	return bakery, res, err
}

// UpdateBakery applies the non-nil fields of upd.
func (s *Service) UpdateBakery(ctx context.Context, id string, upd BakeryUpdate) (bakery domain.Bakery, res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "update_bakery", start, err) }()
	return s.updateBakery(ctx, id, upd)
}

func (s *Service) updateBakery(ctx context.Context, id string, upd BakeryUpdate) (bakery domain.Bakery, res domain.Result, err error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return domain.Bakery{}, domain.Result{}, invalid("bakery name is required")
	}
	var photo stagedPhoto
	if upd.Photo != nil {
		current, ok := s.store.GetBakery(id)
		if !ok {
			return domain.Bakery{}, domain.Result{}, ErrNotFound{Entity: domain.EntityBakery, ID: id}
		}
		if photo, err = s.stagePhoto(ctx, domain.EntityBakery, id, current.PhotoKey, upd.Photo); err != nil {
			return domain.Bakery{}, domain.Result{}, err
		}
	}
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		found, ok := tx.FindBakery(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityBakery, ID: id}
		}
		photo.previous = found.PhotoKey
		var txErr error
		bakery, txErr = tx.UpdateBakery(id, func(b *domain.Bakery) error {
			applyBakeryUpdate(b, upd)
			if photo.set {
				b.PhotoKey = photo.key
			}
			return nil
		})
		return txErr
	})
	s.settlePhoto(ctx, photo, err)
	if err != nil {
		return domain.Bakery{}, res, err
	}
	return bakery, res, nil
}

func applyBakeryUpdate(b *domain.Bakery, upd BakeryUpdate) {
	if upd.Name != nil {
		b.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Address != nil {
		b.Address = strings.TrimSpace(*upd.Address)
	}
	if upd.Latitude != nil {
		b.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil {
		b.Longitude = *upd.Longitude
	}
	if upd.VisitedAt != nil && !upd.VisitedAt.IsZero() {
		b.VisitedAt = *upd.VisitedAt
	}
	if upd.Memo != nil {
		b.Memo = domain.StringPtr(*upd.Memo)
	}
	if upd.IsFavorite != nil {
		b.IsFavorite = *upd.IsFavorite
	}
}

// ToggleFavorite flips the favorite flag of a bakery.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bakery domain.Bakery, res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "toggle_favorite", start, err) }()
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindBakery(id); !ok {
			return ErrNotFound{Entity: domain.EntityBakery, ID: id}
		}
		var txErr error
		bakery, txErr = tx.UpdateBakery(id, func(b *domain.Bakery) error {
			b.IsFavorite = !b.IsFavorite
			return nil
		})
		return txErr
	})
	return bakery, res, err
}

// DeleteBakery removes a bakery together with its breads and their photos.
func (s *Service) DeleteBakery(ctx context.Context, id string) (res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "delete_bakery", start, err) }()
	var photos []string
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		bakery, ok := tx.FindBakery(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityBakery, ID: id}
		}
		photos = append(photos[:0], bakery.PhotoKey)
		for _, bread := range tx.Snapshot().ListBreads() {
			if bread.BelongsTo(id) {
				photos = append(photos, bread.PhotoKey)
			}
		}
		return tx.DeleteBakery(id)
	})
	if err != nil {
		return res, err
	}
	s.discardPhotos(ctx, photos...)
	return res, nil
}

// GetBakery returns a bakery with its bread aggregates.
func (s *Service) GetBakery(ctx context.Context, id string) (summary BakerySummary, err error) {
	err = s.store.View(ctx, func(v domain.TransactionView) error {
		bakery, ok := v.FindBakery(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityBakery, ID: id}
		}
		summary = summarize(bakery, v.ListBreads())
		return nil
	})
	return summary, err
}

// ListBakeries returns every bakery, most recent visit first.
func (s *Service) ListBakeries(ctx context.Context) ([]BakerySummary, error) {
	var out []BakerySummary
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		breads := v.ListBreads()
		bakeries := v.ListBakeries()
		out = make([]BakerySummary, 0, len(bakeries))
		for _, b := range bakeries {
			out = append(out, summarize(b, breads))
		}
		return nil
	})
	return out, err
}

func summarize(b domain.Bakery, breads []domain.Bread) BakerySummary {
	var own []domain.Bread
	for _, bread := range breads {
		if bread.BelongsTo(b.ID) {
			own = append(own, bread)
		}
	}
	return BakerySummary{Bakery: b, BreadCount: len(own), AverageRating: domain.AverageRating(own)}
}

// CreateBread records a bread. Ratings are clamped into range and a zero
// rating takes the default.
func (s *Service) CreateBread(ctx context.Context, in BreadInput) (bread domain.Bread, res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "create_bread", start, err) }()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Bread{}, domain.Result{}, invalid("bread name is required")
	}
	category := in.Category
	if category == "" {
		category = domain.CategoryOther
	}
	if !category.Valid() {
		return domain.Bread{}, domain.Result{}, invalid("unknown bread category %q", category)
	}
	rating := in.Rating
	if rating == 0 {
		rating = domain.DefaultRating
	}
	record := domain.Bread{Name: name, Category: category, Rating: domain.ClampRating(rating)}
	if in.Memo != nil {
		record.Memo = domain.StringPtr(*in.Memo)
	}
	if in.EatenAt != nil {
		record.EatenAt = *in.EatenAt
	}
	if in.BakeryID != nil && *in.BakeryID != "" {
		bakeryID := *in.BakeryID
		record.BakeryID = &bakeryID
	}
	if in.Photo != nil {
		record.ID = uuid.NewString()
	}
	photo, err := s.stagePhoto(ctx, domain.EntityBread, record.ID, "", in.Photo)
	if err != nil {
		return domain.Bread{}, domain.Result{}, err
	}
	record.PhotoKey = photo.key
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		if record.BakeryID != nil {
			if _, ok := tx.FindBakery(*record.BakeryID); !ok {
				return ErrNotFound{Entity: domain.EntityBakery, ID: *record.BakeryID}
			}
		}
		var txErr error
		bread, txErr = tx.CreateBread(record)
		return txErr
	})
	s.settlePhoto(ctx, photo, err)
	return bread, res, err
}

// UpdateBread applies the non-nil fields of upd.
func (s *Service) UpdateBread(ctx context.Context, id string, upd BreadUpdate) (bread domain.Bread, res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "update_bread", start, err) }()
	return s.updateBread(ctx, id, upd)
}

func (s *Service) updateBread(ctx context.Context, id string, upd BreadUpdate) (bread domain.Bread, res domain.Result, err error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return domain.Bread{}, domain.Result{}, invalid("bread name is required")
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return domain.Bread{}, domain.Result{}, invalid("unknown bread category %q", *upd.Category)
	}
	var photo stagedPhoto
	if upd.Photo != nil {
		current, ok := s.store.GetBread(id)
		if !ok {
			return domain.Bread{}, domain.Result{}, ErrNotFound{Entity: domain.EntityBread, ID: id}
		}
		if photo, err = s.stagePhoto(ctx, domain.EntityBread, id, current.PhotoKey, upd.Photo); err != nil {
			return domain.Bread{}, domain.Result{}, err
		}
	}
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		found, ok := tx.FindBread(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityBread, ID: id}
		}
		photo.previous = found.PhotoKey
		if upd.BakeryID != nil && *upd.BakeryID != "" {
			if _, ok := tx.FindBakery(*upd.BakeryID); !ok {
				return ErrNotFound{Entity: domain.EntityBakery, ID: *upd.BakeryID}
			}
		}
		var txErr error
		bread, txErr = tx.UpdateBread(id, func(b *domain.Bread) error {
			applyBreadUpdate(b, upd)
			if photo.set {
				b.PhotoKey = photo.key
			}
			return nil
		})
		return txErr
	})
	s.settlePhoto(ctx, photo, err)
	if err != nil {
		return domain.Bread{}, res, err
	}
	return bread, res, nil
}

func applyBreadUpdate(b *domain.Bread, upd BreadUpdate) {
	if upd.Name != nil {
		b.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Category != nil {
		b.Category = *upd.Category
	}
	if upd.Rating != nil {
		b.Rating = domain.ClampRating(*upd.Rating)
	}
	if upd.Memo != nil {
		b.Memo = domain.StringPtr(*upd.Memo)
	}
	if upd.EatenAt != nil && !upd.EatenAt.IsZero() {
		b.EatenAt = *upd.EatenAt
	}
	if upd.BakeryID != nil {
		if *upd.BakeryID == "" {
			b.BakeryID = nil
		} else {
			bakeryID := *upd.BakeryID
			b.BakeryID = &bakeryID
		}
	}
}

// DeleteBread removes a bread and its photo.
func (s *Service) DeleteBread(ctx context.Context, id string) (res domain.Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "delete_bread", start, err) }()
	var photo string
	res, err = s.mutate(ctx, func(tx domain.Transaction) error {
		bread, ok := tx.FindBread(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityBread, ID: id}
		}
		photo = bread.PhotoKey
		return tx.DeleteBread(id)
	})
	if err != nil {
		return res, err
	}
	s.discardPhotos(ctx, photo)
	return res, nil
}

// GetBread returns a single bread.
func (s *Service) GetBread(_ context.Context, id string) (domain.Bread, error) {
	bread, ok := s.store.GetBread(id)
	if !ok {
		return domain.Bread{}, ErrNotFound{Entity: domain.EntityBread, ID: id}
	}
	return bread, nil
}

// ListBreads returns breads matching filter, most recently eaten first.
func (s *Service) ListBreads(_ context.Context, filter BreadFilter) []domain.Bread {
	var out []domain.Bread
	for _, b := range s.store.ListBreads() {
		if filter.matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// BreadsForBakery lists the breads eaten at one bakery.
func (s *Service) BreadsForBakery(ctx context.Context, bakeryID string) ([]domain.Bread, error) {
	if _, ok := s.store.GetBakery(bakeryID); !ok {
		return nil, ErrNotFound{Entity: domain.EntityBakery, ID: bakeryID}
	}
	return s.ListBreads(ctx, BreadFilter{BakeryID: bakeryID}), nil
}

// Statistics returns the aggregate view, served from the stats cache.
func (s *Service) Statistics(ctx context.Context) (out stats.Stats, err error) {
	err = s.store.View(ctx, func(v domain.TransactionView) error {
		out = s.statsCache.Stats(ctx, v.ListBakeries(), v.ListBreads())
		return nil
	})
	return out, err
}

// Achievements returns the catalog with unlock times. Achievements earned by
// the current records but not yet persisted are recorded first.
func (s *Service) Achievements(ctx context.Context) (out []domain.Achievement, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "achievements", start, err) }()
	var pending bool
	if err = s.store.View(ctx, func(v domain.TransactionView) error {
		pending = len(s.pendingUnlocks(v)) > 0
		return nil
	}); err != nil {
		return nil, err
	}
	if pending {
		if _, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return s.recordUnlocks(tx.Snapshot(), tx)
		}); err != nil {
			return nil, err
		}
	}
	return achievement.WithUnlocks(domain.Catalog(), s.store.ListUnlocks()), nil
}

// Counters returns the achievement inputs for the current records.
func (s *Service) Counters(ctx context.Context) (c achievement.Counters, err error) {
	err = s.store.View(ctx, func(v domain.TransactionView) error {
		c = achievement.CountersFrom(v.ListBakeries(), v.ListBreads())
		return nil
	})
	return c, err
}

// Categories returns every bread category in display order.
func (s *Service) Categories() []domain.BreadCategory {
	return domain.AllCategories()
}
