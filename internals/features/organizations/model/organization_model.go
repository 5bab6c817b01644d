package model

import "time"

type OrganizationModel struct {
	ID        int64     `gorm:"column:organization_id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:organization_name;size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:organization_created_at;autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"column:organization_updated_at;autoUpdateTime" json:"modified"`
}

func (OrganizationModel) TableName() string { return "organizations" }

// OrganizationUserModel is organization membership.
type OrganizationUserModel struct {
	OrganizationID int64 `gorm:"column:organization_user_organization_id;primaryKey"`
	UserID         int64 `gorm:"column:organization_user_user_id;primaryKey;index"`
}

func (OrganizationUserModel) TableName() string { return "organization_users" }
