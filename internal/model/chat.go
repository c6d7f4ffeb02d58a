package model

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one append-only turn of the assistant conversation.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name used by the hosted schema.
func (ChatMessage) TableName() string { return "chat_history" }
