package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/billcal/internal/model"
	"gorm.io/gorm"
)

// Goals persists model.Goal rows.
type Goals struct {
	db *gorm.DB
}

// Create inserts goal, assigning an id when none is set.
func (s *Goals) Create(ctx context.Context, goal *model.Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	return wrap("goals.create", s.db.WithContext(ctx).Create(goal).Error)
}

// Get returns one goal owned by userID.
func (s *Goals) Get(ctx context.Context, userID, id string) (model.Goal, error) {
	var goal model.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&goal).Error
	return goal, wrap("goals.get", err)
}

// List returns every goal ordered by priority then recency.
func (s *Goals) List(ctx context.Context, userID string) ([]model.Goal, error) {
	var goals []model.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("priority DESC, created_at DESC").
		Find(&goals).Error
	return goals, wrap("goals.list", err)
}

// Active returns up to limit active goals.
func (s *Goals) Active(ctx context.Context, userID string, limit int) ([]model.Goal, error) {
	var goals []model.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.GoalActive).
		Order("priority DESC, created_at DESC").
		Limit(limit).
		Find(&goals).Error
	return goals, wrap("goals.active", err)
}

// SetStatus updates the status of one goal.
func (s *Goals) SetStatus(ctx context.Context, userID, id string, status model.GoalStatus) error {
	res := s.db.WithContext(ctx).
		Model(&model.Goal{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	return affected("goals.set_status", res)
}

// Delete removes one goal permanently.
func (s *Goals) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&model.Goal{})
	return affected("goals.delete", res)
}
