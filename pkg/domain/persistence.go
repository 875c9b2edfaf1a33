package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateBakery(Bakery) (Bakery, error)
	UpdateBakery(id string, mutator func(*Bakery) error) (Bakery, error)
	// DeleteBakery removes the bakery and every bread that references it.
	DeleteBakery(id string) error
	CreateBread(Bread) (Bread, error)
	UpdateBread(id string, mutator func(*Bread) error) (Bread, error)
	DeleteBread(id string) error
	RecordUnlock(AchievementUnlock) error
	FindBakery(id string) (Bakery, bool)
	FindBread(id string) (Bread, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListBakeries() []Bakery
	ListBreads() []Bread
	ListUnlocks() []AchievementUnlock
	FindBakery(id string) (Bakery, bool)
	FindBread(id string) (Bread, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetBakery(id string) (Bakery, bool)
	ListBakeries() []Bakery
	GetBread(id string) (Bread, bool)
	ListBreads() []Bread
	ListUnlocks() []AchievementUnlock
	Close() error
}
