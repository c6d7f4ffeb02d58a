package model

import "time"

// Subscription stores a user's notification grant and WhatsApp address.
// A non-empty address belongs to at most one user.
type Subscription struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	WhatsApp  string    `gorm:"column:whatsapp;type:varchar(32);uniqueIndex:idx_subscriptions_whatsapp,where:whatsapp <> ''" json:"whatsapp"`
	Granted   bool      `gorm:"not null" json:"granted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table name used by the hosted schema.
func (Subscription) TableName() string { return "notification_subscriptions" }
