package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores cart snapshots in the cart_snapshots table.
type Repository struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRepository constructs a snapshot repository bound to the provided DB.
// A zero ttl keeps snapshots until the buyer clears the cart.
func NewRepository(db *gorm.DB, ttl time.Duration) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db, ttl: ttl, now: time.Now}, nil
}

// Load returns the stored items, treating expired rows as absent.
func (r *Repository) Load(ctx context.Context, buyerID string) ([]models.CartSnapshotItem, error) {
	var row models.CartSnapshot
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return row.Items, nil
}

// Save upserts the snapshot row for the buyer.
func (r *Repository) Save(ctx context.Context, buyerID string, items []models.CartSnapshotItem) error {
	now := r.now().UTC()
	row := models.CartSnapshot{
		BuyerID:   buyerID,
		Items:     items,
		UpdatedAt: now,
	}
	if r.ttl > 0 {
		expires := now.Add(r.ttl)
		row.ExpiresAt = &expires
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "buyer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at", "expires_at"}),
		}).
		Create(&row).Error
}

func (r *Repository) Delete(ctx context.Context, buyerID string) error {
	return r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Delete(&models.CartSnapshot{}).Error
}

// PurgeExpired removes snapshots whose expiry has passed.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&models.CartSnapshot{})
	return res.RowsAffected, res.Error
}
