package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
	OpOrder  = "order"
)

type mutationRecorder interface {
	IncCartMutation(op string)
}

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithMutationRecorder reports every applied mutation.
func WithMutationRecorder(rec mutationRecorder) StoreOption {
	return func(s *Store) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// Store holds one buyer's cart. Every mutation is applied atomically and then
// written through to the snapshot store.
type Store struct {
	mu        sync.RWMutex
	owner     string
	items     []LineItem
	snapshots SnapshotStore
	logg      *logger.Logger
	recorder  mutationRecorder
	retired   bool
}

// NewStore rehydrates the owner's cart from its last snapshot. An unreadable
// snapshot is logged and the cart starts empty.
func NewStore(ctx context.Context, owner string, snapshots SnapshotStore, logg *logger.Logger, opts ...StoreOption) (*Store, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("cart owner required")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{owner: owner, snapshots: snapshots, logg: logg}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	saved, err := snapshots.Load(ctx, owner)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "cart snapshot unreadable, starting empty")
		return s, nil
	}
	for _, item := range fromSnapshot(saved) {
		if item.ProductID == "" {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if idx := s.indexLocked(item.Identity()); idx >= 0 {
			s.items[idx].Quantity += item.Quantity
			continue
		}
		s.items = append(s.items, item)
	}
	return s, nil
}

// Owner is the buyer id the cart belongs to.
func (s *Store) Owner() string {
	return s.owner
}

// AddItem merges into the line with the same identity or appends a new line.
// On merge only the quantity grows; name, price and metadata keep their first value.
// Non-positive quantities and blank product ids are ignored.
func (s *Store) AddItem(ctx context.Context, in AddItemInput) (LineItem, bool) {
	if in.Quantity <= 0 || strings.TrimSpace(in.ProductID) == "" {
		return LineItem{}, false
	}
	incoming := in.toLineItem()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectLocked(ctx, OpAdd) {
		return LineItem{}, false
	}
	var result LineItem
	if idx := s.indexLocked(incoming.Identity()); idx >= 0 {
		s.items[idx].Quantity += incoming.Quantity
		result = cloneItem(s.items[idx])
	} else {
		s.items = append(s.items, incoming)
		result = cloneItem(incoming)
	}
	s.persistLocked(ctx, OpAdd)
	return result, true
}

// UpdateQuantity sets the quantity of an existing line, clamping values below 1 to 1.
// Unknown identities are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id Identity, quantity int) (LineItem, bool) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectLocked(ctx, OpUpdate) {
		return LineItem{}, false
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return LineItem{}, false
	}
	s.items[idx].Quantity = quantity
	s.persistLocked(ctx, OpUpdate)
	return cloneItem(s.items[idx]), true
}

// RemoveItem deletes the line; unknown identities are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectLocked(ctx, OpRemove) {
		return false
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persistLocked(ctx, OpRemove)
	return true
}

// Clear empties the cart and drops its snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectLocked(ctx, OpClear) {
		return
	}
	s.items = nil
	if err := s.snapshots.Delete(ctx, s.owner); err != nil {
		s.logg.Error(ctx, "failed to delete cart snapshot", err)
	}
	s.record(OpClear)
}

// RemoveOrdered takes the quantities of ordered off the cart. Lines that drop to zero
// are removed; anything added after the order was built stays.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectLocked(ctx, OpOrder) {
		return
	}
	for _, line := range ordered {
		idx := s.indexLocked(line.Identity())
		if idx < 0 {
			continue
		}
		if s.items[idx].Quantity <= line.Quantity {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			continue
		}
		s.items[idx].Quantity -= line.Quantity
	}

	if len(s.items) == 0 {
		s.items = nil
		if err := s.snapshots.Delete(ctx, s.owner); err != nil {
			s.logg.Error(ctx, "failed to delete cart snapshot", err)
		}
		s.record(OpOrder)
		return
	}
	s.persistLocked(ctx, OpOrder)
}

// Retire stops the store from writing. The registry retires a store when it drops
// the buyer so a fresh store can own the snapshot.
func (s *Store) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
}

// Retired reports whether the store was dropped by its registry.
func (s *Store) Retired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retired
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, cloneItem(item))
	}
	return out
}

// Subtotal is recomputed from the current lines on every call.
func (s *Store) Subtotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pricing.Subtotal(Lines(s.items))
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Flush writes the current lines to the snapshot store and reports any failure.
// A retired store has nothing left to write.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		return nil
	}
	if len(s.items) == 0 {
		return s.snapshots.Delete(ctx, s.owner)
	}
	return s.snapshots.Save(ctx, s.owner, toSnapshot(s.items))
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

func (s *Store) rejectLocked(ctx context.Context, op string) bool {
	if !s.retired {
		return false
	}
	s.logg.Warn(s.logg.WithField(ctx, "op", op), "cart mutation dropped on retired store")
	return true
}

func (s *Store) indexLocked(id Identity) int {
	for i, item := range s.items {
		if item.Identity() == id {
			return i
		}
	}
	return -1
}

// persistLocked runs under the write lock so snapshots land in mutation order.
// A failed write keeps the in-memory change.
func (s *Store) persistLocked(ctx context.Context, op string) {
	if err := s.snapshots.Save(ctx, s.owner, toSnapshot(s.items)); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "op", op), "failed to persist cart snapshot", err)
	}
	s.record(op)
}

func (s *Store) record(op string) {
	if s.recorder != nil {
		s.recorder.IncCartMutation(op)
	}
}
