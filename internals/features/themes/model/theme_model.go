package model

import (
	"time"

	orgModel "mobileapps_backend/internals/features/organizations/model"
)

type ThemeState string

const (
	ThemeStateActive   ThemeState = "active"
	ThemeStateInactive ThemeState = "inactive"
)

// Image attributes of a theme.
const (
	AttrLogoImage     = "logo_image"
	AttrHeaderBgImage = "header_bg_image"
)

// ThemeModel is the branding of one organization. At most one row per
// organization is active (ux_themes_org_active).
type ThemeModel struct {
	ID             int64      `gorm:"column:theme_id;primaryKey;autoIncrement"`
	Name           *string    `gorm:"column:theme_name;size:255"`
	OrganizationID int64      `gorm:"column:theme_organization_id;not null;index"`
	State          ThemeState `gorm:"column:theme_state;size:16;not null;default:inactive"`

	LogoImageUploadedAt     *time.Time `gorm:"column:theme_logo_image_uploaded_at"`
	LogoImageExt            *string    `gorm:"column:theme_logo_image_ext;size:8"`
	HeaderBgImageUploadedAt *time.Time `gorm:"column:theme_header_bg_image_uploaded_at"`
	HeaderBgImageExt        *string    `gorm:"column:theme_header_bg_image_ext;size:8"`

	HeaderBackgroundColor *string `gorm:"column:theme_header_background_color;size:255"`
	NavigationTextColor   *string `gorm:"column:theme_navigation_text_color;size:255"`
	NavigationIconColor   *string `gorm:"column:theme_navigation_icon_color;size:255"`
	CompletedCourseTint   *string `gorm:"column:theme_completed_course_tint;size:255"`
	LessonNavigationColor *string `gorm:"column:theme_lesson_navigation_color;size:255"`

	CreatedAt time.Time `gorm:"column:theme_created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:theme_updated_at;autoUpdateTime"`

	Organization *orgModel.OrganizationModel `gorm:"foreignKey:OrganizationID;references:ID"`
}

func (ThemeModel) TableName() string { return "themes" }

func (t *ThemeModel) IsActive() bool { return t.State == ThemeStateActive }

// UploadedAt returns the upload timestamp of attr; nil means no image.
func (t *ThemeModel) UploadedAt(attr string) *time.Time {
	switch attr {
	case AttrLogoImage:
		return t.LogoImageUploadedAt
	case AttrHeaderBgImage:
		return t.HeaderBgImageUploadedAt
	}
	return nil
}

// Ext returns the stored extension of attr, or def when none was recorded.
func (t *ThemeModel) Ext(attr, def string) string {
	var p *string
	switch attr {
	case AttrLogoImage:
		p = t.LogoImageExt
	case AttrHeaderBgImage:
		p = t.HeaderBgImageExt
	}
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// SetImage stamps (or clears, with a nil time) the image columns of attr.
func (t *ThemeModel) SetImage(attr string, at *time.Time, ext *string) {
	switch attr {
	case AttrLogoImage:
		t.LogoImageUploadedAt, t.LogoImageExt = at, ext
	case AttrHeaderBgImage:
		t.HeaderBgImageUploadedAt, t.HeaderBgImageExt = at, ext
	}
}

// ImageColumns are the columns SetImage touches for attr.
func ImageColumns(attr string) (uploadedAt, ext string) {
	return "theme_" + attr + "_uploaded_at", "theme_" + attr + "_ext"
}
