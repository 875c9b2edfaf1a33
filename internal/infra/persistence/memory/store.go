// Package memory provides an in-memory implementation of the persistence
// store used for tests, ephemeral environments, and as the transactional
// core of the snapshotting SQL stores.
package memory

import (
	"breadstamp/pkg/domain"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Bakery aliases domain.Bakery for in-memory persistence operations.
	Bakery = domain.Bakery
	// Bread aliases domain.Bread.
	Bread = domain.Bread
	// AchievementUnlock aliases domain.AchievementUnlock.
	AchievementUnlock = domain.AchievementUnlock
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	bakeries map[string]Bakery
	breads   map[string]Bread
	unlocks  map[string]AchievementUnlock
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Bakeries map[string]Bakery            `json:"bakeries"`
	Breads   map[string]Bread             `json:"breads"`
	Unlocks  map[string]AchievementUnlock `json:"achievements"`
}

func newMemoryState() memoryState {
	return memoryState{
		bakeries: make(map[string]Bakery),
		breads:   make(map[string]Bread),
		unlocks:  make(map[string]AchievementUnlock),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.bakeries {
		cloned.bakeries[k] = cloneBakery(v)
	}
	for k, v := range s.breads {
		cloned.breads[k] = cloneBread(v)
	}
	for k, v := range s.unlocks {
		cloned.unlocks[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Bakeries: cloned.bakeries, Breads: cloned.breads, Unlocks: cloned.unlocks}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{bakeries: s.Bakeries, breads: s.Breads, unlocks: s.Unlocks}
	if state.bakeries == nil {
		state.bakeries = make(map[string]Bakery)
	}
	if state.breads == nil {
		state.breads = make(map[string]Bread)
	}
	if state.unlocks == nil {
		state.unlocks = make(map[string]AchievementUnlock)
	}
	return state.clone()
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBakery(b Bakery) Bakery {
	cp := b
	cp.Memo = cloneString(b.Memo)
	return cp
}

func cloneBread(b Bread) Bread {
	cp := b
	cp.Memo = cloneString(b.Memo)
	cp.BakeryID = cloneString(b.BakeryID)
	return cp
}

// Store provides an in-memory transactional store for the domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp records. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func sortedBakeries(m map[string]Bakery) []Bakery {
	out := make([]Bakery, 0, len(m))
	for _, b := range m {
		out = append(out, cloneBakery(b))
	}
	// newest visit first, matching the stamp book ordering
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VisitedAt.Equal(out[j].VisitedAt) {
			return out[i].VisitedAt.After(out[j].VisitedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedBreads(m map[string]Bread) []Bread {
	out := make([]Bread, 0, len(m))
	for _, b := range m {
		out = append(out, cloneBread(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EatenAt.Equal(out[j].EatenAt) {
			return out[i].EatenAt.After(out[j].EatenAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedUnlocks(m map[string]AchievementUnlock) []AchievementUnlock {
	out := make([]AchievementUnlock, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListBakeries returns all bakeries within the snapshot, most recent visit first.
func (v transactionView) ListBakeries() []Bakery { return sortedBakeries(v.state.bakeries) }

// ListBreads returns all breads within the snapshot, most recently eaten first.
func (v transactionView) ListBreads() []Bread { return sortedBreads(v.state.breads) }

// ListUnlocks returns the persisted achievement unlocks ordered by id.
func (v transactionView) ListUnlocks() []AchievementUnlock { return sortedUnlocks(v.state.unlocks) }

// FindBakery retrieves a bakery by ID from the snapshot.
func (v transactionView) FindBakery(id string) (Bakery, bool) {
	b, ok := v.state.bakeries[id]
	if !ok {
		return Bakery{}, false
	}
	return cloneBakery(b), true
}

// FindBread retrieves a bread by ID from the snapshot.
func (v transactionView) FindBread(id string) (Bread, bool) {
	b, ok := v.state.breads[id]
	if !ok {
		return Bread{}, false
	}
	return cloneBread(b), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindBakery looks up a bakery inside the transaction.
func (tx *transaction) FindBakery(id string) (Bakery, bool) {
	return transactionView{state: &tx.state}.FindBakery(id)
}

// FindBread looks up a bread inside the transaction.
func (tx *transaction) FindBread(id string) (Bread, bool) {
	return transactionView{state: &tx.state}.FindBread(id)
}

// CreateBakery stores a new bakery within the transaction.
func (tx *transaction) CreateBakery(b Bakery) (Bakery, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := tx.state.bakeries[b.ID]; exists {
		return Bakery{}, fmt.Errorf("bakery %q already exists", b.ID)
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	if b.VisitedAt.IsZero() {
		b.VisitedAt = tx.now
	}
	tx.state.bakeries[b.ID] = cloneBakery(b)
	tx.recordChange(Change{Entity: domain.EntityBakery, Action: domain.ActionCreate, After: cloneBakery(b)})
	return cloneBakery(b), nil
}

// UpdateBakery mutates a bakery using the provided mutator function.
func (tx *transaction) UpdateBakery(id string, mutator func(*Bakery) error) (Bakery, error) {
	current, ok := tx.state.bakeries[id]
	if !ok {
		return Bakery{}, fmt.Errorf("bakery %q not found", id)
	}
	before := cloneBakery(current)
	if err := mutator(&current); err != nil {
		return Bakery{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.bakeries[id] = cloneBakery(current)
	tx.recordChange(Change{Entity: domain.EntityBakery, Action: domain.ActionUpdate, Before: before, After: cloneBakery(current)})
	return cloneBakery(current), nil
}

// DeleteBakery removes a bakery and cascades to the breads eaten there.
func (tx *transaction) DeleteBakery(id string) error {
	current, ok := tx.state.bakeries[id]
	if !ok {
		return fmt.Errorf("bakery %q not found", id)
	}
	for breadID, bread := range tx.state.breads {
		if !bread.BelongsTo(id) {
			continue
		}
		delete(tx.state.breads, breadID)
		tx.recordChange(Change{Entity: domain.EntityBread, Action: domain.ActionDelete, Before: cloneBread(bread)})
	}
	delete(tx.state.bakeries, id)
	tx.recordChange(Change{Entity: domain.EntityBakery, Action: domain.ActionDelete, Before: cloneBakery(current)})
	return nil
}

// CreateBread stores a new bread.
func (tx *transaction) CreateBread(b Bread) (Bread, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := tx.state.breads[b.ID]; exists {
		return Bread{}, fmt.Errorf("bread %q already exists", b.ID)
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	if b.EatenAt.IsZero() {
		b.EatenAt = tx.now
	}
	tx.state.breads[b.ID] = cloneBread(b)
	tx.recordChange(Change{Entity: domain.EntityBread, Action: domain.ActionCreate, After: cloneBread(b)})
	return cloneBread(b), nil
}

// UpdateBread mutates a bread using the provided mutator function.
func (tx *transaction) UpdateBread(id string, mutator func(*Bread) error) (Bread, error) {
	current, ok := tx.state.breads[id]
	if !ok {
		return Bread{}, fmt.Errorf("bread %q not found", id)
	}
	before := cloneBread(current)
	if err := mutator(&current); err != nil {
		return Bread{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.breads[id] = cloneBread(current)
	tx.recordChange(Change{Entity: domain.EntityBread, Action: domain.ActionUpdate, Before: before, After: cloneBread(current)})
	return cloneBread(current), nil
}

// DeleteBread removes a bread record.
func (tx *transaction) DeleteBread(id string) error {
	current, ok := tx.state.breads[id]
	if !ok {
		return fmt.Errorf("bread %q not found", id)
	}
	delete(tx.state.breads, id)
	tx.recordChange(Change{Entity: domain.EntityBread, Action: domain.ActionDelete, Before: cloneBread(current)})
	return nil
}

// RecordUnlock persists an achievement unlock. The first unlock wins.
func (tx *transaction) RecordUnlock(u AchievementUnlock) error {
	if u.ID == "" {
		return fmt.Errorf("achievement id required")
	}
	if _, exists := tx.state.unlocks[u.ID]; exists {
		return nil
	}
	if u.UnlockedAt.IsZero() {
		u.UnlockedAt = tx.now
	}
	tx.state.unlocks[u.ID] = u
	tx.recordChange(Change{Entity: domain.EntityAchievement, Action: domain.ActionCreate, After: u})
	return nil
}

// GetBakery returns a bakery by id.
func (s *Store) GetBakery(id string) (Bakery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.bakeries[id]
	if !ok {
		return Bakery{}, false
	}
	return cloneBakery(b), true
}

// ListBakeries returns all bakeries, most recent visit first.
func (s *Store) ListBakeries() []Bakery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedBakeries(s.state.bakeries)
}

// GetBread returns a bread by id.
func (s *Store) GetBread(id string) (Bread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.breads[id]
	if !ok {
		return Bread{}, false
	}
	return cloneBread(b), true
}

// ListBreads returns all breads, most recently eaten first.
func (s *Store) ListBreads() []Bread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedBreads(s.state.breads)
}

// ListUnlocks returns persisted achievement unlocks.
func (s *Store) ListUnlocks() []AchievementUnlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedUnlocks(s.state.unlocks)
}
