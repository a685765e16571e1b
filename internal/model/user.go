package model

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User is a back-office identity: either an advisor (admin) or a client owning plans.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Role      string    `gorm:"type:varchar(16);index;not null" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	IsDeleted bool      `gorm:"not null" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// CanOperate reports whether the user may own new plans or move money.
func (u *User) CanOperate() bool {
	return u.IsActive && !u.IsDeleted
}
