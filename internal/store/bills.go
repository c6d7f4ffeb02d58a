package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/billcal/internal/model"
	"gorm.io/gorm"
)

// Bills persists model.Bill rows.
type Bills struct {
	db *gorm.DB
}

// Create inserts bill, assigning an id when none is set.
func (s *Bills) Create(ctx context.Context, bill *model.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	return wrap("bills.create", s.db.WithContext(ctx).Create(bill).Error)
}

// Get returns one bill owned by userID.
func (s *Bills) Get(ctx context.Context, userID, id string) (model.Bill, error) {
	var bill model.Bill
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&bill).Error
	return bill, wrap("bills.get", err)
}

// Range returns bills dated within [from, to] inclusive, ordered by date.
func (s *Bills) Range(ctx context.Context, userID, from, to string) ([]model.Bill, error) {
	var bills []model.Bill
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, from, to).
		Order("date ASC, created_at ASC").
		Find(&bills).Error
	return bills, wrap("bills.range", err)
}

// OnDate returns the bills of a single day.
func (s *Bills) OnDate(ctx context.Context, userID, date string) ([]model.Bill, error) {
	return s.Range(ctx, userID, date, date)
}

// Upcoming returns up to limit unfinished bills dated on or after from.
func (s *Bills) Upcoming(ctx context.Context, userID, from string, limit int) ([]model.Bill, error) {
	var bills []model.Bill
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND status <> ?", userID, from, model.StatusPaid).
		Order("date ASC").
		Limit(limit).
		Find(&bills).Error
	return bills, wrap("bills.upcoming", err)
}

// Unpaid returns bills dated within [from, to] whose status is not paid.
func (s *Bills) Unpaid(ctx context.Context, userID, from, to string) ([]model.Bill, error) {
	var bills []model.Bill
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ? AND status <> ?", userID, from, to, model.StatusPaid).
		Order("date ASC").
		Find(&bills).Error
	return bills, wrap("bills.unpaid", err)
}

// Update applies fields to one bill and stamps updated_at.
func (s *Bills) Update(ctx context.Context, userID, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).
		Model(&model.Bill{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(fields)
	return affected("bills.update", res)
}

// Delete removes one bill permanently.
func (s *Bills) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&model.Bill{})
	return affected("bills.delete", res)
}
