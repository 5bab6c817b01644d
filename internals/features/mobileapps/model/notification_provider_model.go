package model

import "time"

type NotificationProviderModel struct {
	ID        int64     `gorm:"column:notification_provider_id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:notification_provider_name;size:255;not null" json:"name"`
	APIURL    *string   `gorm:"column:notification_provider_api_url;size:255" json:"api_url"`
	CreatedAt time.Time `gorm:"column:notification_provider_created_at;autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"column:notification_provider_updated_at;autoUpdateTime" json:"modified"`
}

func (NotificationProviderModel) TableName() string { return "notification_providers" }
