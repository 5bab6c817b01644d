// dto/mobile_app_dto.go
package dto

import (
	"strings"
	"time"

	"mobileapps_backend/internals/features/mobileapps/model"
	"mobileapps_backend/internals/helpers/secret"
)

/*
MobileAppRequest
- Used for CREATE, PUT and PATCH.
- CREATE/PUT: name and current_version required; omitted fields become null/default.
- PATCH: only the supplied fields change.
- users / organizations: when supplied, the member set is replaced.
- provider_key / provider_secret: plaintext; values starting with enc_str__ are rejected.
*/
type MobileAppRequest struct {
	Name                   *string  `json:"name" validate:"omitempty,min=1,max=255"`
	IOSAppID               *string  `json:"ios_app_id" validate:"omitempty,max=255"`
	IOSBundleID            *string  `json:"ios_bundle_id" validate:"omitempty,max=255"`
	AndroidAppID           *string  `json:"android_app_id" validate:"omitempty,max=255"`
	IOSDownloadURL         *string  `json:"ios_download_url" validate:"omitempty,url,max=255"`
	AndroidDownloadURL     *string  `json:"android_download_url" validate:"omitempty,url,max=255"`
	DeploymentMechanism    *int16   `json:"deployment_mechanism" validate:"omitempty,oneof=1 2 3 4"`
	AnalyticsURL           *string  `json:"analytics_url" validate:"omitempty,url,max=255"`
	NotificationProviderID *int64   `json:"notification_provider" validate:"omitempty,gt=0"`
	ProviderKey            *string  `json:"provider_key" validate:"omitempty,max=255"`
	ProviderSecret         *string  `json:"provider_secret" validate:"omitempty,max=255"`
	ProviderDashboardURL   *string  `json:"provider_dashboard_url" validate:"omitempty,url,max=255"`
	CurrentVersion         *string  `json:"current_version" validate:"omitempty,min=1,max=255"`
	IsActive               *bool    `json:"is_active"`
	Users                  *[]int64 `json:"users"`
	Organizations          *[]int64 `json:"organizations"`
}

// MissingRequired lists required fields absent from a CREATE/PUT body.
func (r *MobileAppRequest) MissingRequired() map[string][]string {
	out := map[string][]string{}
	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		out["name"] = []string{"required"}
	}
	if r.CurrentVersion == nil || strings.TrimSpace(*r.CurrentVersion) == "" {
		out["current_version"] = []string{"required"}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *MobileAppRequest) Normalize() {
	for _, p := range []**string{
		&r.Name, &r.IOSAppID, &r.IOSBundleID, &r.AndroidAppID, &r.IOSDownloadURL,
		&r.AndroidDownloadURL, &r.AnalyticsURL, &r.ProviderDashboardURL, &r.CurrentVersion,
	} {
		if *p != nil {
			v := strings.TrimSpace(**p)
			*p = &v
		}
	}
}

/* =========================
   Service input
========================= */

// MobileAppFields is the full state written by create/update.
type MobileAppFields struct {
	Name                   string
	IOSAppID               *string
	IOSBundleID            *string
	AndroidAppID           *string
	IOSDownloadURL         *string
	AndroidDownloadURL     *string
	DeploymentMechanism    model.DeploymentMechanism
	AnalyticsURL           *string
	NotificationProviderID *int64
	ProviderKey            secret.EncryptedString
	ProviderSecret         secret.EncryptedString
	ProviderDashboardURL   *string
	CurrentVersion         string
	IsActive               bool
	UserIDs                *[]int64
	OrganizationIDs        *[]int64
}

// DefaultFields is the state of a fresh record before a CREATE/PUT body is applied.
func DefaultFields() MobileAppFields {
	return MobileAppFields{DeploymentMechanism: model.DeploymentPublicStore, IsActive: true}
}

// ApplyTo overlays the supplied request fields on f.
func (r *MobileAppRequest) ApplyTo(f *MobileAppFields) {
	if r.Name != nil {
		f.Name = *r.Name
	}
	if r.IOSAppID != nil {
		f.IOSAppID = emptyToNil(r.IOSAppID)
	}
	if r.IOSBundleID != nil {
		f.IOSBundleID = emptyToNil(r.IOSBundleID)
	}
	if r.AndroidAppID != nil {
		f.AndroidAppID = emptyToNil(r.AndroidAppID)
	}
	if r.IOSDownloadURL != nil {
		f.IOSDownloadURL = emptyToNil(r.IOSDownloadURL)
	}
	if r.AndroidDownloadURL != nil {
		f.AndroidDownloadURL = emptyToNil(r.AndroidDownloadURL)
	}
	if r.DeploymentMechanism != nil {
		f.DeploymentMechanism = model.DeploymentMechanism(*r.DeploymentMechanism)
	}
	if r.AnalyticsURL != nil {
		f.AnalyticsURL = emptyToNil(r.AnalyticsURL)
	}
	if r.NotificationProviderID != nil {
		f.NotificationProviderID = r.NotificationProviderID
	}
	if r.ProviderKey != nil {
		f.ProviderKey = secret.NewEncryptedString(*r.ProviderKey)
	}
	if r.ProviderSecret != nil {
		f.ProviderSecret = secret.NewEncryptedString(*r.ProviderSecret)
	}
	if r.ProviderDashboardURL != nil {
		f.ProviderDashboardURL = emptyToNil(r.ProviderDashboardURL)
	}
	if r.CurrentVersion != nil {
		f.CurrentVersion = *r.CurrentVersion
	}
	if r.IsActive != nil {
		f.IsActive = *r.IsActive
	}
	if r.Users != nil {
		ids := *r.Users
		f.UserIDs = &ids
	}
	if r.Organizations != nil {
		ids := *r.Organizations
		f.OrganizationIDs = &ids
	}
}

func emptyToNil(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}

/* =========================
   Response
========================= */

type MobileAppResponse struct {
	ID                     int64     `json:"id"`
	Created                time.Time `json:"created"`
	Modified               time.Time `json:"modified"`
	Name                   string    `json:"name"`
	IOSAppID               *string   `json:"ios_app_id"`
	IOSBundleID            *string   `json:"ios_bundle_id"`
	AndroidAppID           *string   `json:"android_app_id"`
	IOSDownloadURL         *string   `json:"ios_download_url"`
	AndroidDownloadURL     *string   `json:"android_download_url"`
	DeploymentMechanism    int16     `json:"deployment_mechanism"`
	AnalyticsURL           *string   `json:"analytics_url"`
	NotificationProviderID *int64    `json:"notification_provider"`
	ProviderKey            *string   `json:"provider_key"`
	ProviderSecret         *string   `json:"provider_secret"`
	ProviderDashboardURL   *string   `json:"provider_dashboard_url"`
	CurrentVersion         string    `json:"current_version"`
	IsActive               bool      `json:"is_active"`
	UpdatedBy              int64     `json:"updated_by"`
	Users                  []int64   `json:"users"`
	Organizations          []int64   `json:"organizations"`
}

func ToMobileAppResponse(m *model.MobileAppModel, key, sec secret.EncryptedString, users, orgs []int64) MobileAppResponse {
	if users == nil {
		users = []int64{}
	}
	if orgs == nil {
		orgs = []int64{}
	}
	return MobileAppResponse{
		ID:                     m.ID,
		Created:                m.CreatedAt,
		Modified:               m.UpdatedAt,
		Name:                   m.Name,
		IOSAppID:               m.IOSAppID,
		IOSBundleID:            m.IOSBundleID,
		AndroidAppID:           m.AndroidAppID,
		IOSDownloadURL:         m.IOSDownloadURL,
		AndroidDownloadURL:     m.AndroidDownloadURL,
		DeploymentMechanism:    int16(m.DeploymentMechanism),
		AnalyticsURL:           m.AnalyticsURL,
		NotificationProviderID: m.NotificationProviderID,
		ProviderKey:            key.Ptr(),
		ProviderSecret:         sec.Ptr(),
		ProviderDashboardURL:   m.ProviderDashboardURL,
		CurrentVersion:         m.CurrentVersion,
		IsActive:               m.IsActive,
		UpdatedBy:              m.UpdatedBy,
		Users:                  users,
		Organizations:          orgs,
	}
}

type MobileAppHistoryResponse struct {
	ID                     int64     `json:"id"`
	MobileAppID            int64     `json:"mobile_app"`
	Name                   string    `json:"name"`
	DeploymentMechanism    int16     `json:"deployment_mechanism"`
	NotificationProviderID *int64    `json:"notification_provider"`
	CurrentVersion         string    `json:"current_version"`
	IsActive               bool      `json:"is_active"`
	UpdatedBy              int64     `json:"updated_by"`
	Users                  []int64   `json:"users"`
	Organizations          []int64   `json:"organizations"`
	Created                time.Time `json:"created"`
}

func ToMobileAppHistoryResponse(h *model.MobileAppHistoryModel, members model.HistoryMembers) MobileAppHistoryResponse {
	if members.UserIDs == nil {
		members.UserIDs = []int64{}
	}
	if members.OrganizationIDs == nil {
		members.OrganizationIDs = []int64{}
	}
	return MobileAppHistoryResponse{
		ID:                     h.ID,
		MobileAppID:            h.MobileAppID,
		Name:                   h.Name,
		DeploymentMechanism:    int16(h.DeploymentMechanism),
		NotificationProviderID: h.NotificationProviderID,
		CurrentVersion:         h.CurrentVersion,
		IsActive:               h.IsActive,
		UpdatedBy:              h.UpdatedBy,
		Users:                  members.UserIDs,
		Organizations:          members.OrganizationIDs,
		Created:                h.CreatedAt,
	}
}

/* =========================
   Associations
========================= */

type MobileAppUsersRequest struct {
	Users []int64 `json:"users" validate:"required,dive,gt=0"`
}

type MobileAppOrganizationsRequest struct {
	Organizations []int64 `json:"organizations" validate:"required,dive,gt=0"`
}

type SimpleUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type BasicOrganizationResponse struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}
