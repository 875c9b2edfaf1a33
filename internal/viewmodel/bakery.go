// Package viewmodel holds the screen state behind bakery, bread and profile
// interactions. Each view-model serializes its own state and reports
// failures as fixed user-facing messages.
package viewmodel

import (
	"breadstamp/internal/core"
	"breadstamp/pkg/domain"
	"context"
	"sync"

	"go.uber.org/zap"
)

// User-facing bakery failure messages.
const (
	MsgAddBakeryFailed      = "빵집 추가에 실패했습니다."
	MsgUpdateBakeryFailed   = "빵집 정보 수정에 실패했습니다."
	MsgDeleteBakeryFailed   = "빵집 삭제에 실패했습니다."
	MsgToggleFavoriteFailed = "즐겨찾기 설정에 실패했습니다."
)

// BakeryService is the subset of core.Service the bakery screens use.
type BakeryService interface {
	CreateBakery(ctx context.Context, in core.BakeryInput) (domain.Bakery, domain.Result, error)
	UpdateBakery(ctx context.Context, id string, upd core.BakeryUpdate) (domain.Bakery, domain.Result, error)
	DeleteBakery(ctx context.Context, id string) (domain.Result, error)
	ToggleFavorite(ctx context.Context, id string) (domain.Bakery, domain.Result, error)
}

// BakeryState is a copy of the bakery screen state.
type BakeryState struct {
	IsLoading       bool
	ErrorMessage    string
	ShowAddSheet    bool
	ShowDeleteAlert bool
	BakeryToDelete  *domain.Bakery
}

// BakeryViewModel drives the bakery list, detail and add screens.
type BakeryViewModel struct {
	svc    BakeryService
	logger *zap.Logger

	mu    sync.Mutex
	state BakeryState
}

// NewBakeryViewModel returns a view-model backed by svc.
func NewBakeryViewModel(svc BakeryService, logger *zap.Logger) *BakeryViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BakeryViewModel{svc: svc, logger: logger}
}

// State returns a snapshot of the current state.
func (vm *BakeryViewModel) State() BakeryState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	st := vm.state
	if st.BakeryToDelete != nil {
		b := *st.BakeryToDelete
		st.BakeryToDelete = &b
	}
	return st
}

// OpenAddSheet shows the add form.
func (vm *BakeryViewModel) OpenAddSheet() {
	vm.mu.Lock()
	vm.state.ShowAddSheet = true
	vm.mu.Unlock()
}

// ConfirmDelete remembers b and raises the delete confirmation.
func (vm *BakeryViewModel) ConfirmDelete(b domain.Bakery) {
	vm.mu.Lock()
	vm.state.BakeryToDelete = &b
	vm.state.ShowDeleteAlert = true
	vm.mu.Unlock()
}

// CancelDelete dismisses the confirmation without deleting.
func (vm *BakeryViewModel) CancelDelete() {
	vm.mu.Lock()
	vm.state.BakeryToDelete = nil
	vm.state.ShowDeleteAlert = false
	vm.mu.Unlock()
}

func (vm *BakeryViewModel) begin() {
	vm.mu.Lock()
	vm.state.IsLoading = true
	vm.state.ErrorMessage = ""
	vm.mu.Unlock()
}

// finish records the outcome of an operation. onSuccess runs under the lock.
func (vm *BakeryViewModel) finish(op string, err error, message string, onSuccess func(*BakeryState)) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.IsLoading = false
	if err != nil {
		vm.logger.Warn("bakery action failed", zap.String("action", op), zap.Error(err))
		vm.state.ErrorMessage = message
		return false
	}
	if onSuccess != nil {
		onSuccess(&vm.state)
	}
	return true
}

// AddBakery creates a bakery together with photo, when given, and closes the
// add sheet on success. A rejected photo leaves nothing stored.
func (vm *BakeryViewModel) AddBakery(ctx context.Context, in core.BakeryInput, photo []byte) (domain.Bakery, bool) {
	vm.begin()
	if len(photo) > 0 {
		in.Photo = &core.PhotoUpload{Data: photo}
	}
	bakery, _, err := vm.svc.CreateBakery(ctx, in)
	ok := vm.finish("add", err, MsgAddBakeryFailed, func(st *BakeryState) { st.ShowAddSheet = false })
	return bakery, ok
}

// UpdateBakery edits the name, address and memo of a bakery.
func (vm *BakeryViewModel) UpdateBakery(ctx context.Context, id, name, address string, memo *string) (domain.Bakery, bool) {
	vm.begin()
	cleared := ""
	if memo == nil {
		memo = &cleared
	}
	bakery, _, err := vm.svc.UpdateBakery(ctx, id, core.BakeryUpdate{Name: &name, Address: &address, Memo: memo})
	return bakery, vm.finish("update", err, MsgUpdateBakeryFailed, nil)
}

// DeleteBakery removes the bakery and its breads, then clears the pending
// confirmation.
func (vm *BakeryViewModel) DeleteBakery(ctx context.Context, id string) bool {
	vm.begin()
	_, err := vm.svc.DeleteBakery(ctx, id)
	return vm.finish("delete", err, MsgDeleteBakeryFailed, func(st *BakeryState) {
		st.ShowDeleteAlert = false
		st.BakeryToDelete = nil
	})
}

// DeletePending deletes the bakery chosen with ConfirmDelete.
func (vm *BakeryViewModel) DeletePending(ctx context.Context) bool {
	vm.mu.Lock()
	pending := vm.state.BakeryToDelete
	vm.mu.Unlock()
	if pending == nil {
		return false
	}
	return vm.DeleteBakery(ctx, pending.ID)
}

// ToggleFavorite flips the favorite flag. It does not touch IsLoading.
func (vm *BakeryViewModel) ToggleFavorite(ctx context.Context, id string) (domain.Bakery, bool) {
	bakery, _, err := vm.svc.ToggleFavorite(ctx, id)
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.logger.Warn("bakery action failed", zap.String("action", "favorite"), zap.Error(err))
		vm.state.ErrorMessage = MsgToggleFavoriteFailed
		return domain.Bakery{}, false
	}
	return bakery, true
}
