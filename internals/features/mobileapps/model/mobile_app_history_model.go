package model

import (
	"time"

	"gorm.io/datatypes"
)

// MobileAppHistoryModel is an append-only snapshot written on every save of a MobileApp.
type MobileAppHistoryModel struct {
	ID                     int64               `gorm:"column:mobile_app_history_id;primaryKey;autoIncrement"`
	MobileAppID            int64               `gorm:"column:mobile_app_history_mobile_app_id;not null;index"`
	Name                   string              `gorm:"column:mobile_app_history_name;size:255;not null"`
	IOSAppID               *string             `gorm:"column:mobile_app_history_ios_app_id;size:255"`
	IOSBundleID            *string             `gorm:"column:mobile_app_history_ios_bundle_id;size:255"`
	AndroidAppID           *string             `gorm:"column:mobile_app_history_android_app_id;size:255"`
	IOSDownloadURL         *string             `gorm:"column:mobile_app_history_ios_download_url;size:255"`
	AndroidDownloadURL     *string             `gorm:"column:mobile_app_history_android_download_url;size:255"`
	DeploymentMechanism    DeploymentMechanism `gorm:"column:mobile_app_history_deployment_mechanism;not null"`
	AnalyticsURL           *string             `gorm:"column:mobile_app_history_analytics_url;size:255"`
	NotificationProviderID *int64              `gorm:"column:mobile_app_history_notification_provider_id"`
	ProviderKey            *string             `gorm:"column:mobile_app_history_provider_key;size:512"`
	ProviderSecret         *string             `gorm:"column:mobile_app_history_provider_secret;size:512"`
	ProviderDashboardURL   *string             `gorm:"column:mobile_app_history_provider_dashboard_url;size:255"`
	CurrentVersion         string              `gorm:"column:mobile_app_history_current_version;size:255;not null"`
	IsActive               bool                `gorm:"column:mobile_app_history_is_active;not null"`
	UpdatedBy              int64               `gorm:"column:mobile_app_history_updated_by;not null"`
	Members                datatypes.JSON      `gorm:"column:mobile_app_history_members"`
	CreatedAt              time.Time           `gorm:"column:mobile_app_history_created_at;autoCreateTime"`
}

func (MobileAppHistoryModel) TableName() string { return "mobile_app_histories" }

// HistoryMembers is the shape stored in Members.
type HistoryMembers struct {
	UserIDs         []int64 `json:"user_ids"`
	OrganizationIDs []int64 `json:"organization_ids"`
}
