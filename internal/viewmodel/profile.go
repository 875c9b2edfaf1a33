package viewmodel

import (
	"breadstamp/internal/achievement"
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"context"
	"sync"

	"go.uber.org/zap"
)

// MsgLoadProfileFailed is shown when achievements cannot be refreshed.
const MsgLoadProfileFailed = "업적 정보를 불러오지 못했습니다."

// ProfileService is the subset of core.Service the profile screen uses.
type ProfileService interface {
	Achievements(ctx context.Context) ([]domain.Achievement, error)
	Statistics(ctx context.Context) (stats.Stats, error)
}

// ProfileViewModel holds badge progress and the statistics summary.
type ProfileViewModel struct {
	svc    ProfileService
	logger *zap.Logger

	mu           sync.Mutex
	achievements []domain.Achievement
	stats        stats.Stats
	errorMessage string
}

// NewProfileViewModel returns a view-model backed by svc, starting from the
// locked catalog.
func NewProfileViewModel(svc ProfileService, logger *zap.Logger) *ProfileViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileViewModel{svc: svc, logger: logger, achievements: domain.Catalog()}
}

// Refresh reloads statistics and achievements. Newly earned badges are
// recorded by the service as a side effect.
func (vm *ProfileViewModel) Refresh(ctx context.Context) bool {
	s, err := vm.svc.Statistics(ctx)
	var all []domain.Achievement
	if err == nil {
		all, err = vm.svc.Achievements(ctx)
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.logger.Warn("profile refresh failed", zap.Error(err))
		vm.errorMessage = MsgLoadProfileFailed
		return false
	}
	vm.errorMessage = ""
	vm.stats = s
	vm.achievements = all
	return true
}

// Achievements returns the badges in catalog order.
func (vm *ProfileViewModel) Achievements() []domain.Achievement {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]domain.Achievement(nil), vm.achievements...)
}

// Stats returns the statistics from the last successful Refresh.
func (vm *ProfileViewModel) Stats() stats.Stats {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stats
}

// ErrorMessage is empty unless the last Refresh failed.
func (vm *ProfileViewModel) ErrorMessage() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.errorMessage
}

// UnlockedCount counts unlocked badges.
func (vm *ProfileViewModel) UnlockedCount() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(achievement.Unlocked(vm.achievements))
}

// TotalCount is the catalog size.
func (vm *ProfileViewModel) TotalCount() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.achievements)
}

// CompletionRate is UnlockedCount over TotalCount, in [0, 1].
func (vm *ProfileViewModel) CompletionRate() float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return achievement.CompletionRate(vm.achievements)
}

// Next returns the locked badge closest to completion.
func (vm *ProfileViewModel) Next() (domain.Achievement, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return achievement.Next(vm.achievements, achievement.CountersFromStats(vm.stats))
}
