package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
)

// Goal priorities; higher sorts first.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// ErrInvalidPriority is returned for a priority outside 1..3.
var ErrInvalidPriority = errors.New("priority must be between 1 and 3")

// Goal is a user-defined financial target.
type Goal struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string              `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	Goal         string              `gorm:"type:text;not null" json:"goal"`
	TargetAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"target_amount"`
	TargetDate   *string             `gorm:"type:varchar(10)" json:"target_date"`
	Priority     int                 `gorm:"not null;default:1" json:"priority"`
	Status       GoalStatus          `gorm:"type:varchar(16);not null;default:active;index" json:"status"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table name used by the hosted schema.
func (Goal) TableName() string { return "user_goals" }
