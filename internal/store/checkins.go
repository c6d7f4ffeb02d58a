package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/billcal/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckIns persists one DailyCheckIn per user and day.
type CheckIns struct {
	db *gorm.DB
}

// Get returns the check-in for date, or nil when none exists yet.
func (s *CheckIns) Get(ctx context.Context, userID, date string) (*model.DailyCheckIn, error) {
	var checkIn model.DailyCheckIn
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND check_in_date = ?", userID, date).
		First(&checkIn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("checkins.get", err)
	}
	return &checkIn, nil
}

// Upsert writes checkIn keyed on (user_id, check_in_date); the last write wins.
func (s *CheckIns) Upsert(ctx context.Context, checkIn *model.DailyCheckIn) error {
	if checkIn.ID == "" {
		checkIn.ID = uuid.NewString()
	}
	if checkIn.UpdatedAt.IsZero() {
		checkIn.UpdatedAt = time.Now()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "check_in_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"goals_discussed", "progress_notes", "updated_at"}),
		}).
		Create(checkIn).Error
	return wrap("checkins.upsert", err)
}
