package model

import "time"

type DeploymentMechanism int16

const (
	DeploymentPublicStore DeploymentMechanism = 1
	DeploymentEnterprise  DeploymentMechanism = 2
	DeploymentOTA         DeploymentMechanism = 3
	DeploymentOther       DeploymentMechanism = 4
)

var deploymentLabels = map[DeploymentMechanism]string{
	DeploymentPublicStore: "Public app store",
	DeploymentEnterprise:  "Enterprise",
	DeploymentOTA:         "OTA",
	DeploymentOther:       "Other",
}

func (d DeploymentMechanism) Label() string { return deploymentLabels[d] }
func (d DeploymentMechanism) Valid() bool   { _, ok := deploymentLabels[d]; return ok }

// MobileAppModel stores provider_key/provider_secret in their stored
// (encrypted) form; convert with secret.FromStored / ToStored.
type MobileAppModel struct {
	ID                     int64               `gorm:"column:mobile_app_id;primaryKey;autoIncrement"`
	Name                   string              `gorm:"column:mobile_app_name;size:255;not null;index"`
	IOSAppID               *string             `gorm:"column:mobile_app_ios_app_id;size:255;index"`
	IOSBundleID            *string             `gorm:"column:mobile_app_ios_bundle_id;size:255;index"`
	AndroidAppID           *string             `gorm:"column:mobile_app_android_app_id;size:255;index"`
	IOSDownloadURL         *string             `gorm:"column:mobile_app_ios_download_url;size:255"`
	AndroidDownloadURL     *string             `gorm:"column:mobile_app_android_download_url;size:255"`
	DeploymentMechanism    DeploymentMechanism `gorm:"column:mobile_app_deployment_mechanism;not null"`
	AnalyticsURL           *string             `gorm:"column:mobile_app_analytics_url;size:255"`
	NotificationProviderID *int64              `gorm:"column:mobile_app_notification_provider_id;index"`
	ProviderKey            *string             `gorm:"column:mobile_app_provider_key;size:512"`
	ProviderSecret         *string             `gorm:"column:mobile_app_provider_secret;size:512"`
	ProviderDashboardURL   *string             `gorm:"column:mobile_app_provider_dashboard_url;size:255"`
	CurrentVersion         string              `gorm:"column:mobile_app_current_version;size:255;not null"`
	IsActive               bool                `gorm:"column:mobile_app_is_active;not null"`
	UpdatedBy              int64               `gorm:"column:mobile_app_updated_by;not null"`
	CreatedAt              time.Time           `gorm:"column:mobile_app_created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:mobile_app_updated_at;autoUpdateTime"`

	NotificationProvider *NotificationProviderModel `gorm:"foreignKey:NotificationProviderID;references:ID"`
}

func (MobileAppModel) TableName() string { return "mobile_apps" }

type MobileAppUserModel struct {
	MobileAppID int64 `gorm:"column:mobile_app_user_mobile_app_id;primaryKey"`
	UserID      int64 `gorm:"column:mobile_app_user_user_id;primaryKey;index"`
}

func (MobileAppUserModel) TableName() string { return "mobile_app_users" }

type MobileAppOrganizationModel struct {
	MobileAppID    int64 `gorm:"column:mobile_app_organization_mobile_app_id;primaryKey"`
	OrganizationID int64 `gorm:"column:mobile_app_organization_organization_id;primaryKey;index"`
}

func (MobileAppOrganizationModel) TableName() string { return "mobile_app_organizations" }
