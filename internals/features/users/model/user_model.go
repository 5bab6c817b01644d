package model

import "time"

// UserModel is the platform account. This service only reads it.
type UserModel struct {
	ID        int64     `gorm:"column:user_id;primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"column:user_name;size:150;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"column:user_email;size:254" json:"email"`
	IsStaff   bool      `gorm:"column:user_is_staff;not null" json:"is_staff"`
	IsActive  bool      `gorm:"column:user_is_active;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:user_created_at;autoCreateTime" json:"created_at"`
}

func (UserModel) TableName() string { return "users" }
