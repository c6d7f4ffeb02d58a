package model

import "time"

// DailyCheckIn records whether goals were discussed with the assistant on a day.
// There is at most one row per user and day.
type DailyCheckIn struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"not null;type:varchar(64);uniqueIndex:idx_checkin_user_date" json:"user_id"`
	CheckInDate    string    `gorm:"not null;type:varchar(10);uniqueIndex:idx_checkin_user_date" json:"check_in_date"`
	GoalsDiscussed bool      `gorm:"not null" json:"goals_discussed"`
	ProgressNotes  string    `gorm:"type:text" json:"progress_notes"`
	UpdatedAt      time.Time `json:"updated_at"`
}
