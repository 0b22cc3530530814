package cart

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront/pkg/db/models"
)

// SnapshotStore persists the line items of a buyer's cart between visits.
// Snapshots never carry checkout state. Load returns nil, nil when nothing is stored.
type SnapshotStore interface {
	Load(ctx context.Context, buyerID string) ([]models.CartSnapshotItem, error)
	Save(ctx context.Context, buyerID string, items []models.CartSnapshotItem) error
	Delete(ctx context.Context, buyerID string) error
}

// MemorySnapshotStore keeps snapshots in process memory.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	carts map[string][]models.CartSnapshotItem
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{carts: map[string][]models.CartSnapshotItem{}}
}

func (m *MemorySnapshotStore) Load(_ context.Context, buyerID string) ([]models.CartSnapshotItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.carts[buyerID]
	if !ok {
		return nil, nil
	}
	return append([]models.CartSnapshotItem(nil), items...), nil
}

func (m *MemorySnapshotStore) Save(_ context.Context, buyerID string, items []models.CartSnapshotItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[buyerID] = append([]models.CartSnapshotItem(nil), items...)
	return nil
}

func (m *MemorySnapshotStore) Delete(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, buyerID)
	return nil
}

func toSnapshot(items []LineItem) []models.CartSnapshotItem {
	out := make([]models.CartSnapshotItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.CartSnapshotItem{
			ProductID:      item.ProductID,
			VariantID:      cloneString(item.VariantID),
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			ImageURL:       cloneString(item.ImageURL),
			SellerID:       cloneString(item.SellerID),
		})
	}
	return out
}

func fromSnapshot(items []models.CartSnapshotItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		line := AddItemInput{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			ImageURL:       item.ImageURL,
			SellerID:       item.SellerID,
		}.toLineItem()
		out = append(out, line)
	}
	return out
}
