package viewmodel

import (
	"breadstamp/internal/core"
	"breadstamp/pkg/domain"
	"context"
	"sync"

	"go.uber.org/zap"
)

// User-facing bread failure messages.
const (
	MsgAddBreadFailed    = "빵 추가에 실패했습니다."
	MsgUpdateBreadFailed = "빵 정보 수정에 실패했습니다."
	MsgDeleteBreadFailed = "빵 삭제에 실패했습니다."
)

// BreadService is the subset of core.Service the bread screens use.
type BreadService interface {
	CreateBread(ctx context.Context, in core.BreadInput) (domain.Bread, domain.Result, error)
	UpdateBread(ctx context.Context, id string, upd core.BreadUpdate) (domain.Bread, domain.Result, error)
	DeleteBread(ctx context.Context, id string) (domain.Result, error)
}

// BreadState is a copy of the bread screen state.
type BreadState struct {
	IsLoading    bool
	ErrorMessage string
	ShowAddSheet bool
}

// BreadEdit is the full editable form of a bread. Photo replaces the stored
// photo; nil removes it.
type BreadEdit struct {
	Name     string
	Category domain.BreadCategory
	Photo    []byte
	Rating   int
	Memo     *string
}

// BreadViewModel drives the bread add and edit screens.
type BreadViewModel struct {
	svc    BreadService
	logger *zap.Logger

	mu    sync.Mutex
	state BreadState
}

// NewBreadViewModel returns a view-model backed by svc.
func NewBreadViewModel(svc BreadService, logger *zap.Logger) *BreadViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreadViewModel{svc: svc, logger: logger}
}

// State returns a snapshot of the current state.
func (vm *BreadViewModel) State() BreadState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// OpenAddSheet shows the add form.
func (vm *BreadViewModel) OpenAddSheet() {
	vm.mu.Lock()
	vm.state.ShowAddSheet = true
	vm.mu.Unlock()
}

func (vm *BreadViewModel) run(op, message string, fn func() error, onSuccess func(*BreadState)) bool {
	vm.mu.Lock()
	vm.state.IsLoading = true
	vm.state.ErrorMessage = ""
	vm.mu.Unlock()

	err := fn()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.IsLoading = false
	if err != nil {
		vm.logger.Warn("bread action failed", zap.String("action", op), zap.Error(err))
		vm.state.ErrorMessage = message
		return false
	}
	if onSuccess != nil {
		onSuccess(&vm.state)
	}
	return true
}

// AddBread records a bread together with photo, when given. A rejected
// photo leaves nothing stored.
func (vm *BreadViewModel) AddBread(ctx context.Context, in core.BreadInput, photo []byte) (bread domain.Bread, ok bool) {
	if len(photo) > 0 {
		in.Photo = &core.PhotoUpload{Data: photo}
	}
	ok = vm.run("add", MsgAddBreadFailed, func() error {
		var err error
		bread, _, err = vm.svc.CreateBread(ctx, in)
		return err
	}, func(st *BreadState) { st.ShowAddSheet = false })
	return bread, ok
}

// UpdateBread overwrites every editable field of a bread, photo included, in
// one commit.
func (vm *BreadViewModel) UpdateBread(ctx context.Context, id string, edit BreadEdit) (bread domain.Bread, ok bool) {
	ok = vm.run("update", MsgUpdateBreadFailed, func() error {
		memo := ""
		if edit.Memo != nil {
			memo = *edit.Memo
		}
		var err error
		bread, _, err = vm.svc.UpdateBread(ctx, id, core.BreadUpdate{
			Name:     &edit.Name,
			Category: &edit.Category,
			Rating:   &edit.Rating,
			Memo:     &memo,
			Photo:    &core.PhotoUpload{Data: edit.Photo},
		})
		return err
	}, nil)
	return bread, ok
}

// DeleteBread removes a bread and its photo.
func (vm *BreadViewModel) DeleteBread(ctx context.Context, id string) bool {
	return vm.run("delete", MsgDeleteBreadFailed, func() error {
		_, err := vm.svc.DeleteBread(ctx, id)
		return err
	}, nil)
}
