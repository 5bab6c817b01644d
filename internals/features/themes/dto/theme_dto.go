package dto

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/themes/model"
)

/* =========================
   Request (multipart / urlencoded / json)
========================= */

// Field names shared by every encoding.
const (
	FieldName                  = "name"
	FieldHeaderBackgroundColor = "header_background_color"
	FieldNavigationTextColor   = "navigation_text_color"
	FieldNavigationIconColor   = "navigation_icon_color"
	FieldCompletedCourseTint   = "completed_course_tint"
	FieldLessonNavigationColor = "lesson_navigation_color"
	FieldActive                = "active"
)

var textFields = []string{
	FieldName,
	FieldHeaderBackgroundColor,
	FieldNavigationTextColor,
	FieldNavigationIconColor,
	FieldCompletedCourseTint,
	FieldLessonNavigationColor,
}

// ThemeForm is the scalar part of a create/update request. Present records
// which keys the client sent so PATCH can leave the rest untouched.
type ThemeForm struct {
	Name                  *string `json:"name" validate:"omitempty,max=255"`
	HeaderBackgroundColor *string `json:"header_background_color" validate:"omitempty,max=255"`
	NavigationTextColor   *string `json:"navigation_text_color" validate:"omitempty,max=255"`
	NavigationIconColor   *string `json:"navigation_icon_color" validate:"omitempty,max=255"`
	CompletedCourseTint   *string `json:"completed_course_tint" validate:"omitempty,max=255"`
	LessonNavigationColor *string `json:"lesson_navigation_color" validate:"omitempty,max=255"`
	// Active: true activates, false or null deactivates, absent keeps the state.
	Active *bool `json:"active"`

	Present map[string]bool `json:"-"`
}

// ThemeFiles are the optional uploads, keyed by image attribute.
type ThemeFiles struct {
	LogoImage     *multipart.FileHeader
	HeaderBgImage *multipart.FileHeader
}

func (f ThemeFiles) For(attr string) *multipart.FileHeader {
	switch attr {
	case model.AttrLogoImage:
		return f.LogoImage
	case model.AttrHeaderBgImage:
		return f.HeaderBgImage
	}
	return nil
}

func (r *ThemeForm) field(key string) **string {
	switch key {
	case FieldName:
		return &r.Name
	case FieldHeaderBackgroundColor:
		return &r.HeaderBackgroundColor
	case FieldNavigationTextColor:
		return &r.NavigationTextColor
	case FieldNavigationIconColor:
		return &r.NavigationIconColor
	case FieldCompletedCourseTint:
		return &r.CompletedCourseTint
	case FieldLessonNavigationColor:
		return &r.LessonNavigationColor
	}
	return nil
}

// BindThemeForm reads the request. Multipart carries the image files;
// a JSON body can only change scalar fields.
func BindThemeForm(c *fiber.Ctx) (ThemeForm, ThemeFiles, error) {
	form := ThemeForm{Present: map[string]bool{}}
	var files ThemeFiles

	if c.Is("json") {
		var raw map[string]any
		if err := c.BodyParser(&raw); err != nil {
			return form, files, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		for _, k := range textFields {
			v, ok := raw[k]
			if !ok {
				continue
			}
			form.Present[k] = true
			if s, ok := v.(string); ok {
				setText(form.field(k), s)
			}
		}
		if v, ok := raw[FieldActive]; ok {
			form.Present[FieldActive] = true
			b, _ := v.(bool)
			form.Active = &b
		}
		return form, files, nil
	}

	values := map[string][]string{}
	if mf, err := c.MultipartForm(); err == nil {
		values = mf.Value
		if fh := firstFile(mf, model.AttrLogoImage); fh != nil {
			files.LogoImage = fh
		}
		if fh := firstFile(mf, model.AttrHeaderBgImage); fh != nil {
			files.HeaderBgImage = fh
		}
	} else {
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = append(values[string(k)], string(v))
		})
	}

	for _, k := range textFields {
		vs, ok := values[k]
		if !ok {
			continue
		}
		form.Present[k] = true
		if len(vs) > 0 {
			setText(form.field(k), vs[0])
		}
	}
	if vs, ok := values[FieldActive]; ok {
		form.Present[FieldActive] = true
		b := len(vs) > 0 && parseBoolLoose(vs[0])
		form.Active = &b
	}
	return form, files, nil
}

func firstFile(mf *multipart.Form, key string) *multipart.FileHeader {
	if fs := mf.File[key]; len(fs) > 0 && fs[0] != nil && fs[0].Size > 0 {
		return fs[0]
	}
	return nil
}

// setText stores a trimmed value; blank clears the field.
func setText(dst **string, v string) {
	if dst == nil {
		return
	}
	v = strings.TrimSpace(v)
	if v == "" {
		*dst = nil
		return
	}
	*dst = &v
}

func parseBoolLoose(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ApplyTo copies the scalar fields onto m. A full update replaces every
// text field, a partial one only those that were sent. State is left to
// the service.
func (r ThemeForm) ApplyTo(m *model.ThemeModel, partial bool) {
	set := func(key string, dst **string, v *string) {
		if partial && !r.Present[key] {
			return
		}
		*dst = v
	}
	set(FieldName, &m.Name, r.Name)
	set(FieldHeaderBackgroundColor, &m.HeaderBackgroundColor, r.HeaderBackgroundColor)
	set(FieldNavigationTextColor, &m.NavigationTextColor, r.NavigationTextColor)
	set(FieldNavigationIconColor, &m.NavigationIconColor, r.NavigationIconColor)
	set(FieldCompletedCourseTint, &m.CompletedCourseTint, r.CompletedCourseTint)
	set(FieldLessonNavigationColor, &m.LessonNavigationColor, r.LessonNavigationColor)
}

/* =========================
   Response
========================= */

// ImagePayload is {"has_image": bool, "image_url_{label}": url, ...}.
type ImagePayload map[string]any

type ThemeResponse struct {
	ID                      int64      `json:"id"`
	Created                 time.Time  `json:"created"`
	Modified                time.Time  `json:"modified"`
	Name                    *string    `json:"name"`
	Organization            int64      `json:"organization"`
	Active                  *bool      `json:"active"`
	LogoImageUploadedAt     *time.Time `json:"logo_image_uploaded_at"`
	HeaderBgImageUploadedAt *time.Time `json:"header_bg_image_uploaded_at"`
	HeaderBackgroundColor   *string    `json:"header_background_color"`
	NavigationTextColor     *string    `json:"navigation_text_color"`
	NavigationIconColor     *string    `json:"navigation_icon_color"`
	CompletedCourseTint     *string    `json:"completed_course_tint"`
	LessonNavigationColor   *string    `json:"lesson_navigation_color"`

	LogoImage     ImagePayload `json:"logo_image"`
	HeaderBgImage ImagePayload `json:"header_bg_image"`
}

// ToThemeResponse keeps the tri-state "active": true or null, never false.
func ToThemeResponse(m *model.ThemeModel, logo, headerBg ImagePayload) ThemeResponse {
	var active *bool
	if m.IsActive() {
		t := true
		active = &t
	}
	return ThemeResponse{
		ID:                      m.ID,
		Created:                 m.CreatedAt,
		Modified:                m.UpdatedAt,
		Name:                    m.Name,
		Organization:            m.OrganizationID,
		Active:                  active,
		LogoImageUploadedAt:     m.LogoImageUploadedAt,
		HeaderBgImageUploadedAt: m.HeaderBgImageUploadedAt,
		HeaderBackgroundColor:   m.HeaderBackgroundColor,
		NavigationTextColor:     m.NavigationTextColor,
		NavigationIconColor:     m.NavigationIconColor,
		CompletedCourseTint:     m.CompletedCourseTint,
		LessonNavigationColor:   m.LessonNavigationColor,
		LogoImage:               logo,
		HeaderBgImage:           headerBg,
	}
}
