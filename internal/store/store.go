// Package store implements the record store over GORM: bills, goals, chat
// history, daily check-ins and notification subscriptions, all scoped by the
// owning user.
package store

import (
	"errors"
	"fmt"

	"github.com/pathakanu/billcal/internal/metrics"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no row matches the owning user and id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would take a unique value owned by another row.
	ErrConflict = errors.New("record conflicts with an existing one")
)

// Store groups the per-table repositories sharing one connection.
type Store struct {
	Bills         *Bills
	Goals         *Goals
	Chat          *Chat
	CheckIns      *CheckIns
	Subscriptions *Subscriptions
}

// New returns repositories bound to db.
func New(db *gorm.DB) *Store {
	return &Store{
		Bills:         &Bills{db: db},
		Goals:         &Goals{db: db},
		Chat:          &Chat{db: db},
		CheckIns:      &CheckIns{db: db},
		Subscriptions: &Subscriptions{db: db},
	}
}

// wrap records a failed operation and annotates err with op.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w", op, err)
}

// affected converts a write result into ErrNotFound when nothing matched.
func affected(op string, res *gorm.DB) error {
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
