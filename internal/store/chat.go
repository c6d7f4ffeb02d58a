package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/billcal/internal/model"
	"gorm.io/gorm"
)

// Chat persists the append-only assistant conversation.
type Chat struct {
	db *gorm.DB
}

// Append stores msg, assigning id and timestamp when unset.
func (s *Chat) Append(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return wrap("chat.append", s.db.WithContext(ctx).Create(msg).Error)
}

// Recent returns the latest limit messages in ascending time order.
func (s *Chat) Recent(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, wrap("chat.recent", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
