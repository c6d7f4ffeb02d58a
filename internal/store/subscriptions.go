package store

import (
	"context"

	"github.com/pathakanu/billcal/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Subscriptions persists notification grants.
type Subscriptions struct {
	db *gorm.DB
}

// Save creates or replaces the subscription of sub.UserID. A WhatsApp address
// already linked to another user is refused with ErrConflict.
func (s *Subscriptions) Save(ctx context.Context, sub *model.Subscription) error {
	if sub.WhatsApp != "" {
		var taken int64
		err := s.db.WithContext(ctx).
			Model(&model.Subscription{}).
			Where("whatsapp = ? AND user_id <> ?", sub.WhatsApp, sub.UserID).
			Count(&taken).Error
		if err != nil {
			return wrap("subscriptions.save", err)
		}
		if taken > 0 {
			return ErrConflict
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"whatsapp", "granted", "updated_at"}),
		}).
		Create(sub).Error
	return wrap("subscriptions.save", err)
}

// Get returns the subscription of userID.
func (s *Subscriptions) Get(ctx context.Context, userID string) (model.Subscription, error) {
	var sub model.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	return sub, wrap("subscriptions.get", err)
}

// ByWhatsApp resolves the owner of a WhatsApp address.
func (s *Subscriptions) ByWhatsApp(ctx context.Context, address string) (model.Subscription, error) {
	var sub model.Subscription
	err := s.db.WithContext(ctx).Where("whatsapp = ?", address).First(&sub).Error
	return sub, wrap("subscriptions.by_whatsapp", err)
}

// Granted lists every subscription with notifications enabled.
func (s *Subscriptions) Granted(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).Where("granted = ?", true).Find(&subs).Error
	return subs, wrap("subscriptions.granted", err)
}
