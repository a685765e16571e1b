package model

import (
	"time"
)

const (
	NotificationTypeTransaction = "transaction"
	NotificationTypeReport      = "report"
	NotificationTypeAlert       = "alert"
	NotificationTypeOther       = "other"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Notification is an in-app message shown to a user until read.
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"type:varchar(16);not null" json:"type"`
	Priority  string    `gorm:"type:varchar(8);not null" json:"priority"`
	Read      bool      `gorm:"index;not null" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notification"
}
